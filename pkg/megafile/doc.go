/*
Package megafile concatenates a scope snapshot into a single text file.

Each file becomes one block:

	===== src/main.go =====
	<raw bytes of src/main.go>
	<newline>

Blocks are sorted by relative path, byte-wise, so the same snapshot always
composes to the same bytes. Parse reverses the operation.
*/
package megafile
