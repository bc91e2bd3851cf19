// Copyright 2024 Juca Crispim <juca@poraodojuca.net>

// This file is part of cgi-echo.

// cgi-echo is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// cgi-echo is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with cgi-echo. If not, see <http://www.gnu.org/licenses/>.

package echo

import (
	"bufio"
	"fmt"
	"html"
	"io"
)

const ContentType = "text/html"

// Page is everything rendered in the response document.
type Page struct {
	Method      string
	QueryString string
	// Body is nil when no POST body section is rendered.
	Body *Body
}

func NewPage(req Request) Page {
	return Page{Method: req.Method, QueryString: req.QueryString}
}

// Render writes the CGI header section followed by the HTML document.
// Interpolated values are HTML escaped.
func Render(w io.Writer, p Page) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Content-Type: %s\n\n", ContentType)
	fmt.Fprint(bw, "<html><body>\n")
	fmt.Fprint(bw, "<h1>Hello from CGI!</h1>\n")
	fmt.Fprintf(bw, "<p>Request Method: %s</p>\n", html.EscapeString(p.Method))
	fmt.Fprintf(bw, "<p>Query String: %s</p>\n", html.EscapeString(p.QueryString))

	if b := p.Body; b != nil {
		if b.Err != nil {
			fmt.Fprintf(bw, "<p>Error reading POST body: %s</p>\n",
				html.EscapeString(b.Err.Error()))
		} else {
			fmt.Fprint(bw, "<h2>POST Body</h2>\n")
			fmt.Fprintf(bw, "<pre>%s</pre>\n", html.EscapeString(b.Text))
		}
	}

	fmt.Fprint(bw, "</body></html>\n")
	return bw.Flush()
}
