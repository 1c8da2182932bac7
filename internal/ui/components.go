// Package ui holds the server-rendered pages of the six7 browser.
package ui

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// Bucket represents a single S3 bucket for display.
type Bucket struct {
	Name         string
	CreationDate string
}

// Object represents a single object within a bucket for display.
type Object struct {
	Key          string
	Size         int64
	LastModified string
	ETag         string
}

// Listing is one level of a bucket as seen through the "/" delimiter.
type Listing struct {
	Bucket  string
	Prefix  string
	Folders []string
	Objects []Object
	Message string
	Trimmed bool
}

// writeAll writes each string in order and stops at the first error.
func writeAll(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

// Layout renders a full HTML page with a title and body component.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		err := writeAll(w,
			"<!DOCTYPE html><html lang=\"en\">",
			"<head><meta charset=\"utf-8\">",
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">",
			"<title>", html.EscapeString(title), "</title>",
			// Minimal modern CSS framework (Pico.css) via CDN.
			"<link rel=\"stylesheet\" href=\"https://unpkg.com/@picocss/pico@2/css/pico.min.css\">",
			"</head>",
			"<body><main class=\"container\">",
		)
		if err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		return writeAll(w, "</main></body></html>")
	})
}

// BucketLink returns the browser path showing prefix within bucket.
func BucketLink(bucket string, prefix string) string {
	return "/bucket/" + url.PathEscape(bucket) + "/" + escapeKeyPath(prefix)
}

// escapeKeyPath escapes each segment of a key while keeping its slashes.
func escapeKeyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// BucketsPage renders the list of buckets.
func BucketsPage(buckets []Bucket) templ.Component {
	return Layout("six7 - Buckets", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		err := writeAll(w,
			"<section><header><h1>Buckets</h1>",
			"<p>Browse buckets and objects via the S3-compatible API.</p></header>",
			"<form method=\"post\" action=\"/buckets\" role=\"group\">",
			"<input name=\"name\" placeholder=\"new-bucket-name\" required>",
			"<button type=\"submit\">Create bucket</button></form>",
		)
		if err != nil {
			return err
		}

		if len(buckets) == 0 {
			return writeAll(w, "<p>No buckets found.</p></section>")
		}

		if err := writeAll(w, "<table><thead><tr><th>Name</th><th>Created</th></tr></thead><tbody>"); err != nil {
			return err
		}

		for _, b := range buckets {
			row := fmt.Sprintf("<tr><td><a href=\"%s\">%s</a></td><td>%s</td></tr>",
				html.EscapeString(BucketLink(b.Name, "")), html.EscapeString(b.Name), html.EscapeString(b.CreationDate))
			if err := writeAll(w, row); err != nil {
				return err
			}
		}

		return writeAll(w, "</tbody></table></section>")
	}))
}

// breadcrumbs renders links to the bucket root and every parent folder of
// prefix.
func breadcrumbs(w io.Writer, bucket string, prefix string) error {
	if err := writeAll(w, "<nav aria-label=\"breadcrumb\"><ul><li><a href=\"/\">Buckets</a></li>"); err != nil {
		return err
	}

	crumb := fmt.Sprintf("<li><a href=\"%s\">%s</a></li>", html.EscapeString(BucketLink(bucket, "")), html.EscapeString(bucket))
	if err := writeAll(w, crumb); err != nil {
		return err
	}

	var walked string
	for folder := range strings.SplitSeq(strings.TrimSuffix(prefix, "/"), "/") {
		if folder == "" {
			continue
		}
		walked += folder + "/"
		crumb := fmt.Sprintf("<li><a href=\"%s\">%s</a></li>", html.EscapeString(BucketLink(bucket, walked)), html.EscapeString(folder))
		if err := writeAll(w, crumb); err != nil {
			return err
		}
	}

	return writeAll(w, "</ul></nav>")
}

// ObjectsPage renders one folder level of a bucket with an upload form and
// a delete button per object.
func ObjectsPage(l Listing) templ.Component {
	return Layout("six7 - "+l.Bucket, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w, "<section><header>"); err != nil {
			return err
		}
		if err := breadcrumbs(w, l.Bucket, l.Prefix); err != nil {
			return err
		}
		if err := writeAll(w, "</header>"); err != nil {
			return err
		}

		if l.Message != "" {
			if err := writeAll(w, "<p role=\"alert\">", html.EscapeString(l.Message), "</p>"); err != nil {
				return err
			}
		}

		bucket := url.PathEscape(l.Bucket)
		err := writeAll(w,
			"<form method=\"post\" enctype=\"multipart/form-data\" action=\"", html.EscapeString("/upload/"+bucket), "\" role=\"group\">",
			"<input type=\"hidden\" name=\"prefix\" value=\"", html.EscapeString(l.Prefix), "\">",
			"<input type=\"file\" name=\"file\" required>",
			"<button type=\"submit\">Upload</button></form>",
		)
		if err != nil {
			return err
		}

		if len(l.Folders) == 0 && len(l.Objects) == 0 {
			return writeAll(w, "<p>No objects here.</p></section>")
		}

		if err := writeAll(w, "<table><thead><tr><th>Name</th><th>Size (bytes)</th><th>Last Modified</th><th></th></tr></thead><tbody>"); err != nil {
			return err
		}

		for _, folder := range l.Folders {
			name := strings.TrimPrefix(folder, l.Prefix)
			row := fmt.Sprintf("<tr><td><a href=\"%s\">%s</a></td><td></td><td></td><td></td></tr>",
				html.EscapeString(BucketLink(l.Bucket, folder)), html.EscapeString(name))
			if err := writeAll(w, row); err != nil {
				return err
			}
		}

		for _, o := range l.Objects {
			name := strings.TrimPrefix(o.Key, l.Prefix)
			download := "/download/" + bucket + "?key=" + url.QueryEscape(o.Key)
			row := fmt.Sprintf("<tr><td><a href=\"%s\" title=\"%s\">%s</a></td><td>%d</td><td>%s</td>"+
				"<td><form method=\"post\" action=\"%s\"><input type=\"hidden\" name=\"key\" value=\"%s\">"+
				"<button type=\"submit\" class=\"secondary\">Delete</button></form></td></tr>",
				html.EscapeString(download), html.EscapeString(o.ETag), html.EscapeString(name), o.Size,
				html.EscapeString(o.LastModified), html.EscapeString("/delete/"+bucket), html.EscapeString(o.Key))
			if err := writeAll(w, row); err != nil {
				return err
			}
		}

		if err := writeAll(w, "</tbody></table>"); err != nil {
			return err
		}

		if l.Trimmed {
			if err := writeAll(w, "<p><small>Only the first page of results is shown.</small></p>"); err != nil {
				return err
			}
		}

		return writeAll(w, "</section>")
	}))
}
