/*
Package operation implements the staging synchronizer.

	+-------------+
	|   Plan      |
	| (Diff)      |
	+------+------+
	       |
	+------+------+
	|   Sync      |
	| (Apply)     |
	+------+------+

🎯 Purpose:
- Diffs the last manifest against a fresh scope snapshot
- Applies create, update and delete ops to the staging dir
- Rewrites the megafile and tree listing when anything changed

🔄 Flow:
1. Plan returns sorted ops; unchanged paths produce none
2. Ops run on a bounded errgroup, each under a per-file deadline
3. A failed op is recorded in the Report and the rest continue
4. Staged files nothing accounts for are swept
5. The next manifest holds only what succeeded

⚡ Signatures:
A path is unchanged when size, mtime and staging name match the manifest.
When only the stat changed, the content hash decides: an identical file just
refreshes its manifest entry without being rewritten.

🔍 Example:

	syncer, err := operation.New(operation.Options{Config: cfg, Files: status.New(dir)})
	report, manifest := syncer.Sync(ctx, manifest, snap)
*/
package operation
