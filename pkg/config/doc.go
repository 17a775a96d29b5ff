/*
Package config loads .stagerc.* settings for a project.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +-----------+-----------+-----------+
	      |           |           |           |
	+-----+----+ +----+----+ +----+----+ +----+----+
	|   YAML   | |   HCL   | |  JSON   | | Default |
	+----------+ +---------+ +---------+ +---------+

🎯 Purpose:
- Finds and parses .stagerc.yaml / .stagerc.hcl / .stagerc.json
- Applies defaults (staging dir, transcoding list, debounce, timeouts)
- Validates values before any file is touched

🔄 Flow:
1. Discover looks for a config file in the project root
2. The parser registered for its extension decodes it
3. Validate fills defaults and rejects bad values
4. Flags from the command line override what the file says

⚡ Defaults:
- staging dir: $TMPDIR/stagerc_files/<project>-<hash>
- transcode: .js .jsx .svelte .vue get a .txt suffix
- ignore_defaults: .git/
- debounce 1s, poll_interval 2s, file_timeout 10s, concurrency 4

🔍 Example:

	megafile {
	  enabled = true
	}
	staging_dir = "${env.HOME}/llm-staging"

HCL expressions see env.NAME and project_root.
*/
package config
