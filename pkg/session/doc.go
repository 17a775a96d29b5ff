/*
Package session ties one project root to its staging dir.

A Session owns the rule cache, the manifest and the synchronizer for a root,
and runs passes (resolve, then sync) one at a time. The watcher built by
Session.Watcher calls back into Refresh.

The Registry remembers recently staged roots in projects.json under the user
config dir.
*/
package session
