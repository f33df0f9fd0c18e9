package server

import (
	"bytes"
	"html/template"
	"net/http"

	"NewportChat/internal/render"
	"NewportChat/internal/session"

	"github.com/go-chi/chi/v5"
)

const pageHTML = `{{define "messages"}}{{range .}}<div class="msg {{if .IsUser}}user{{else if .IsError}}bot error{{else}}bot{{end}}">{{if .IsUser}}{{user .Text}}{{else}}{{bot .Text}}{{end}}</div>
{{end}}{{end}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
header { display: flex; justify-content: space-between; align-items: center; }
#messages { display: flex; flex-direction: column; gap: .5rem; min-height: 20rem; }
.msg { padding: .5rem .75rem; border-radius: .75rem; max-width: 75%; }
.user { align-self: flex-end; background: #0e7490; color: #fff; }
.bot { align-self: flex-start; background: #e2e8f0; }
.error { background: #fee2e2; color: #b91c1c; }
#loading { visibility: hidden; }
#loading.on { visibility: visible; }
</style>
</head>
<body>
<header><h1>{{.Title}}</h1><button id="clear" type="button">Clear</button></header>
<div id="messages">{{template "messages" .Messages}}</div>
<p id="loading"{{if .Loading}} class="on"{{end}}>Waiting for a reply...</p>
<form id="form">
<input id="input" autocomplete="off" placeholder="{{.Placeholder}}" value="{{.Draft}}"{{if .Loading}} disabled{{end}} autofocus>
<button type="submit">Send</button>
</form>
<script>
const id = {{.ID}};
const api = "/api/sessions/" + encodeURIComponent(id);
const input = document.getElementById("input");
const messages = document.getElementById("messages");
const loading = document.getElementById("loading");

function post(path, body) {
  return fetch(api + path, {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(body || {})});
}

document.getElementById("form").addEventListener("submit", (e) => {
  e.preventDefault();
  const text = input.value;
  if (text.trim() === "") return;
  input.value = "";
  post("/messages", {text: text});
});
document.getElementById("clear").addEventListener("click", () => post("/clear"));
input.addEventListener("input", () => fetch(api + "/draft", {method: "PUT", body: JSON.stringify({text: input.value})}));

const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + api + "/ws");
ws.onmessage = (e) => {
  const ev = JSON.parse(e.data);
  if (ev.type === "snapshot") {
    messages.innerHTML = ev.html;
    input.disabled = ev.snapshot.loading;
    loading.classList.toggle("on", ev.snapshot.loading);
    if (!ev.snapshot.loading) input.focus();
    window.scrollTo(0, document.body.scrollHeight);
  } else if (ev.type === "focus" && !input.disabled) {
    input.focus();
  }
};
</script>
</body>
</html>
`

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"bot":  render.BotHTML,
	"user": render.UserHTML,
}).Parse(pageHTML))

type pageData struct {
	session.Snapshot
	Title       string
	Placeholder string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	widget := sess.Widget()
	data := pageData{
		Snapshot:    sess.Snapshot(),
		Title:       widget.Title,
		Placeholder: widget.Placeholder,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", "session_id", sess.ID(), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// renderMessages renders the transcript fragment pushed to live pages
func renderMessages(messages []session.Message) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "messages", messages); err != nil {
		return "", err
	}
	return buf.String(), nil
}
