package httpapi

import _ "embed"

// The two read-only pages are compiled into the binary so the server ships as
// a single file with no asset directory to mount.

//go:embed web/index.html
var dashboardHTML []byte

//go:embed web/history.html
var historyHTML []byte
