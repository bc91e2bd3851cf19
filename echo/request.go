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

// Package echo renders the HTML page returned by the echo CGI scripts.
package echo

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Request holds the CGI meta-variables the scripts care about.
type Request struct {
	Method      string
	QueryString string
	// ContentLength is kept raw; it is only parsed when a body is read.
	ContentLength string
}

// RequestFromEnv reads the request meta-variables using lookup. Missing
// variables are empty strings.
func RequestFromEnv(lookup LookupFunc) Request {
	get := func(k string) string {
		v, _ := lookup(k)
		return v
	}
	return Request{
		Method:        get("REQUEST_METHOD"),
		QueryString:   get("QUERY_STRING"),
		ContentLength: get("CONTENT_LENGTH"),
	}
}

// IsPost reports whether the request method is exactly POST.
func (r Request) IsPost() bool {
	return r.Method == "POST"
}
