/*
Package watch turns filesystem changes into sync passes.

A Source reports changes under a root: NotifySource uses native notifications
through fsnotify, PollSource rescans on an interval. A Watcher debounces those
events and runs at most one sync pass at a time. Changes that arrive during a
pass queue exactly one follow-up pass.

If the native source cannot start, or fails while running, the watcher swaps
in its fallback source and keeps going.
*/
package watch
