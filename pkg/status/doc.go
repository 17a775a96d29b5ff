/*
Package status owns the staging directory and the manifest of what is in it.

	            +-------------+
	            |   Status    |
	            |  (Staging)  |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	|  Manager  |           |Manifest |
	| (Files)   |           | (State) |
	+-----------+           +---------+

🎯 Purpose:
- Copies source files into the flat staging dir, atomically
- Deletes staged files that fell out of scope
- Remembers a Signature (size, mtime, xxh3 hash) per synced path
- Rebuilds that memory from the staging dir on startup

🔄 Flow:
1. The synchronizer decides what to create, update and delete
2. Manager.CopyIn streams the source into a temp file, hashing as it goes
3. The temp file is renamed over the staged name
4. The returned Signature goes into the next Manifest

⚡ Errors:
- StagingWriteError (matches ErrStagingWrite) for failures on the staging side
- scope.IOError (matches scope.ErrIO) for unreadable sources

🔍 Example:

	mgr := status.New(stagingDir)
	sig, err := mgr.CopyIn(ctx, entry, entry.StagingName)
	manifest[entry.RelPath] = sig
*/
package status
