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
	"io"

	"go.uber.org/zap"
)

type Options struct {
	// EchoBody enables the POST body section.
	EchoBody bool
	// Logger must not write to the response stream. nil means no logging.
	Logger *zap.Logger
}

// Run reads the request from lookup and stdin and writes the full CGI
// response to w.
func Run(w io.Writer, lookup LookupFunc, stdin io.Reader, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	req := RequestFromEnv(lookup)
	page := NewPage(req)
	if opts.EchoBody {
		page.Body = ReadBody(req, stdin)
		if page.Body != nil && page.Body.Err != nil {
			logger.Warn("could not read POST body",
				zap.String("content_length", req.ContentLength),
				zap.Error(page.Body.Err))
		}
	}

	logger.Debug("rendering page",
		zap.String("method", req.Method),
		zap.String("query_string", req.QueryString),
		zap.Bool("has_body", page.Body != nil))
	return Render(w, page)
}
