// Package httpapi is the browser-facing surface: an upload form and a
// multipart endpoint that runs the orchestrator and hands the produced files
// back as individual downloads, a ZIP archive, or JSON.
package httpapi
