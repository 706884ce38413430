package popout

import (
	"bytes"
	"html/template"
)

// MountID is the id of the element the output mounts into.
const MountID = "livesync-output-root"

var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<div id="{{.MountID}}"></div>
</body>
</html>
`))

// Shell renders the document written into a fresh popout window.
func Shell(title string) (string, error) {
	var buf bytes.Buffer
	err := shellTemplate.Execute(&buf, struct {
		Title   string
		MountID string
	}{Title: title, MountID: MountID})
	return buf.String(), err
}
