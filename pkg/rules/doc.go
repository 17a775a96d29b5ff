/*
Package rules parses and evaluates the .ignore and .include rule files.

	 .ignore / .include
	        |
	   +----+-----+
	   |  Parse   |  one Pattern per line
	   +----+-----+
	        |
	   +----+-----+        +-----------+
	   | RuleSet  | <----- |   Cache   |  reload on mtime/size change
	   +----+-----+        +-----------+
	        |
	   +----+-----+
	   |  Match   |  last match wins
	   +----------+

🎯 Purpose:
- Turn gitignore-syntax lines into compiled Patterns
- Decide whether a relative path is ignored or selected
- Keep rule files cached per session

🔄 Flow:
1. Parse reads lines, skipping blanks and comments
2. Each line becomes a Pattern (negated / anchored / directory-only flags)
3. Match walks the Patterns in order; the last one that matches decides
4. Excluded also checks every ancestor directory, so an excluded directory
   excludes its whole subtree

⚡ Semantics:
- "*.log" has no slash and matches the basename at any depth
- "/build" and "docs/api" are anchored to the project root
- "node_modules/" only matches directories
- "**" matches zero or more path segments
- "\#" and "\!" escape a literal leading character

🔍 Example:

	rs := rules.ParseString(ctx, ".ignore", "*.log\n!keep.log\n")
	rs.Ignored("app.log", false)  // true
	rs.Ignored("keep.log", false) // false
*/
package rules
