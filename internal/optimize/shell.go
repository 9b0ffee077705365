package optimize

import (
	"bytes"
	"html/template"
)

// DefaultTitle is the shell's <title> when none is configured.
const DefaultTitle = "Document"

var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>{{.Title}}</title>
  </head>
  <body>
    <div id="app"></div>
    <script src="{{.Script}}"></script>
{{- if .ReloadPath}}
    <script>
      (function () {
        var scheme = location.protocol === "https:" ? "wss://" : "ws://";
        var socket = new WebSocket(scheme + location.host + {{.ReloadPath}});
        socket.onmessage = function (event) {
          if (event.data === "rebuilt") {
            location.reload();
          }
        };
      })();
    </script>
{{- end}}
  </body>
</html>
`))

type shellData struct {
	Title      string
	Script     string
	ReloadPath string
}

// Shell renders the HTML page that loads script. A non-empty reloadPath adds
// a client that reloads the page when the server reports a rebuild.
func Shell(title, script, reloadPath string) ([]byte, error) {
	if title == "" {
		title = DefaultTitle
	}
	var buf bytes.Buffer
	err := shellTemplate.Execute(&buf, shellData{Title: title, Script: script, ReloadPath: reloadPath})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
