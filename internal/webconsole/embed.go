// ABOUTME: Embeds HTML templates into the binary using go:embed
// ABOUTME: Provides templateFS for parsing page templates at startup

package webconsole

import "embed"

//go:embed templates/*.html
var templateFS embed.FS
