package clower

import "embed"

// AdminAssets holds the page served under /admin when no admin UI
// directory is configured.
//
//go:embed embedded/admin/*
var AdminAssets embed.FS
