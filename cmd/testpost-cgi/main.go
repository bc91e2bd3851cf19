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

// testpost.cgi reports the request method and query string and echoes
// the POST body.
package main

import (
	"os"

	"github.com/jucacrispim/cgi-echo/echo"
	"github.com/jucacrispim/cgi-echo/internal/logging"
	"go.uber.org/zap"
)

func main() {
	logger := logging.FromEnv()
	defer logger.Sync()

	err := echo.Run(os.Stdout, os.LookupEnv, os.Stdin, echo.Options{
		EchoBody: true,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("writing response", zap.Error(err))
	}
}
