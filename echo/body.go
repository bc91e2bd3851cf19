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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrBadContentLength = errors.New("[cgi-echo] bad CONTENT_LENGTH")
var ErrShortBody = errors.New("[cgi-echo] body shorter than CONTENT_LENGTH")

// Body is the outcome of reading a POST body. Exactly one of Text and Err
// is meaningful.
type Body struct {
	Text string
	Err  error
}

// ReadBody reads the request body from stdin. It returns nil when there is
// nothing to read: the method is not POST or CONTENT_LENGTH is empty. Read
// failures are reported in the returned Body, never as a panic.
func ReadBody(req Request, stdin io.Reader) *Body {
	if !req.IsPost() || req.ContentLength == "" {
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(req.ContentLength))
	if err != nil || n < 0 {
		return &Body{Err: fmt.Errorf("%w: %q", ErrBadContentLength, req.ContentLength)}
	}

	buf := make([]byte, n)
	_, err = io.ReadFull(stdin, buf)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), n > 0 && errors.Is(err, io.EOF):
		return &Body{Err: fmt.Errorf("%w: wanted %d bytes", ErrShortBody, n)}
	case err != nil:
		return &Body{Err: fmt.Errorf("[cgi-echo] reading body: %w", err)}
	}
	return &Body{Text: string(buf)}
}
