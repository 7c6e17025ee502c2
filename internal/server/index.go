package server

// indexHTML is the landing page: an upload form plus an EventSource
// listener that links each finished result as it arrives.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Object Detection</title>
  <style>
    body { font-family: sans-serif; max-width: 640px; margin: 2rem auto; }
    #results li { margin: 0.5rem 0; }
  </style>
</head>
<body>
  <h1>Object Detection</h1>
  <form id="upload-form">
    <input type="file" name="file" required>
    <button type="submit">Upload</button>
  </form>
  <p id="status"></p>
  <ul id="results"></ul>
  <script>
    const form = document.getElementById('upload-form');
    const status = document.getElementById('status');
    const results = document.getElementById('results');

    form.addEventListener('submit', async (e) => {
      e.preventDefault();
      const resp = await fetch('/upload', { method: 'POST', body: new FormData(form) });
      const body = await resp.json();
      status.textContent = resp.ok ? body.message : body.error;
    });

    const source = new EventSource('/events');
    source.addEventListener('processing_complete', (e) => {
      const ev = JSON.parse(e.data);
      const li = document.createElement('li');
      const a = document.createElement('a');
      a.href = ev.url;
      a.textContent = ev.filename;
      li.appendChild(a);
      results.appendChild(li);
      status.textContent = 'Done: ' + ev.filename;
    });
  </script>
</body>
</html>
`
