// Package appfs embeds the app's static assets: schema migrations and email templates.
package appfs

import "embed"

//go:embed migrations templates
var FS embed.FS
