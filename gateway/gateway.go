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

// Package gateway runs CGI scripts from a directory behind an http.Handler.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var INTERNAL_SERVER_ERROR_MSG = "Internal server error"

var ErrMissingConfig = errors.New("[cgi-echo] No config")
var ErrNoCgiDir = errors.New("[cgi-echo] CGI_DIR missing from config")
var ErrBadCgiDir = errors.New("[cgi-echo] CGI_DIR wrong config value")
var ErrUnknownScheme = errors.New("[cgi-echo] Unknown scheme")
var ErrBadHost = errors.New("[cgi-echo] Bad Host header")
var ErrInvalidCgiResponse = errors.New("[cgi-echo] Invalid cgi response")
var ErrPermission = errors.New("[cgi-echo] Script not executable")

// Exit status shells use for "found but not executable".
const notExecutableExit = 126

type Handler struct {
	CgiDir string
	// ServerSoftware is sent as SERVER_SOFTWARE when the request carries
	// no Server-Software header.
	ServerSoftware string
	Logger         *zap.Logger
}

// New validates conf and returns a Handler for its CGI_DIR.
func New(conf map[string]any) (*Handler, error) {
	if conf == nil {
		return nil, ErrMissingConfig
	}

	d, exists := conf["CGI_DIR"]
	if !exists {
		return nil, ErrNoCgiDir
	}

	cgiDir, ok := d.(string)
	if !ok {
		return nil, ErrBadCgiDir
	}

	st, err := os.Stat(cgiDir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, ErrBadCgiDir
	}

	h := &Handler{CgiDir: cgiDir, ServerSoftware: "cgi-echo"}
	if s, ok := conf["SERVER_SOFTWARE"].(string); ok {
		h.ServerSoftware = s
	}
	return h, nil
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger().With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))

	m, err := getMetaVars(r, h.CgiDir)
	if err != nil {
		log.Error("building meta variables", zap.Error(err))
		http.Error(w, INTERNAL_SERVER_ERROR_MSG, http.StatusInternalServerError)
		return
	}
	if m["SCRIPT_NAME"] == "" {
		http.Error(w, "NOT FOUND", http.StatusNotFound)
		return
	}
	if m["SERVER_SOFTWARE"] == "" && h.ServerSoftware != "" {
		m["SERVER_SOFTWARE"] = h.ServerSoftware
	}

	var rawBody []byte
	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		defer r.Body.Close()
		rawBody, err = io.ReadAll(r.Body)
		if err != nil {
			log.Warn("reading request body", zap.Error(err))
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		m["CONTENT_LENGTH"] = strconv.Itoa(len(rawBody))
	}

	output, stderr, err := execCmd(r.Context(), m, rawBody)
	if len(stderr) > 0 {
		log.Info("script stderr",
			zap.String("script", m["SCRIPT_NAME"]),
			zap.ByteString("stderr", stderr))
	}
	if err != nil {
		log.Error("running script",
			zap.String("script", m["SCRIPT_NAME"]),
			zap.Error(err))
		if errors.Is(err, ErrPermission) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, INTERNAL_SERVER_ERROR_MSG, http.StatusInternalServerError)
		return
	}

	headers, body, err := parseCgiResponse(output)
	if err != nil {
		log.Error("parsing script response", zap.Error(err))
		http.Error(w, INTERNAL_SERVER_ERROR_MSG, http.StatusInternalServerError)
		return
	}

	stsInt := http.StatusOK
	if _, exists := headers["Status"]; exists {
		sts := headers.Get("Status")
		// "200 OK" and "200" are both valid
		code, _, _ := strings.Cut(sts, " ")
		stsInt, err = strconv.Atoi(code)
		if err != nil || stsInt < 100 || stsInt > 999 {
			log.Error("bad script status", zap.String("status", sts))
			http.Error(w, INTERNAL_SERVER_ERROR_MSG, http.StatusInternalServerError)
			return
		}
		headers.Del("Status")
	}

	for k, vs := range headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(stsInt)
	w.Write(body)
	log.Debug("served", zap.Int("status", stsInt), zap.Int("bytes", len(body)))
}

func isNewLine(s string) bool {
	if s == "\n" || s == "\n\r" || s == "\r" || s == "\r\n" || s == "" {
		return true
	}
	return false
}

// parseCgiResponse splits a script's output into its header section and
// body. The header section ends at the first empty line. Repeated header
// lines keep every value.
func parseCgiResponse(response []byte) (http.Header, []byte, error) {
	headers := make(http.Header)
	delim := byte('\n')
	previousDelim := 0
	for i, b := range response {
		if b != delim {
			continue
		}
		line := string(response[previousDelim:i])
		if isNewLine(line) {
			return headers, response[i+1:], nil
		}
		previousDelim = i + 1
		line = strings.TrimRight(line, "\r")
		k, v, found := strings.Cut(line, ":")
		if !found {
			return nil, nil, fmt.Errorf("%w: bad header line %q", ErrInvalidCgiResponse, line)
		}
		headers.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return nil, nil, ErrInvalidCgiResponse
}

func execCmd(ctx context.Context, meta map[string]string, rawBody []byte) ([]byte, []byte, error) {
	envVars := make([]string, 0, len(meta)+1)
	for k, v := range meta {
		envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
	}
	// Not a CGI variable, but scripts need it to find their interpreter.
	envVars = append(envVars, "PATH="+os.Getenv("PATH"))

	cmdPath, err := filepath.Abs(meta["SCRIPT_NAME"])
	if err != nil {
		return nil, nil, err
	}
	cmd := exec.CommandContext(ctx, cmdPath)
	cmd.Dir = filepath.Dir(cmdPath)
	cmd.Env = envVars
	if rawBody != nil {
		cmd.Stdin = bytes.NewReader(rawBody)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	o, err := cmd.Output()
	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, fs.ErrPermission):
		err = fmt.Errorf("%w: %w", ErrPermission, err)
	case errors.As(err, &exitErr) && exitErr.ExitCode() == notExecutableExit:
		err = fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return o, stderr.Bytes(), err
}

func getMetaVars(r *http.Request, cgiDir string) (map[string]string, error) {
	headers := []string{
		"Auth-Type",
		"Remote-User",
		"Content-Type",
		"Server-Software",
	}
	meta := make(map[string]string)

	for _, h := range headers {
		rHeader := r.Header.Get(h)
		if rHeader != "" {
			meta[strings.ReplaceAll(strings.ToUpper(h), "-", "_")] = rHeader
		}
	}

	scriptPath, pathInfo := findScript(cgiDir, r.URL.Path)
	pathTranslated := ""

	if pathInfo != "" {
		pathTranslated = cgiDir + pathInfo
	}

	cl := r.ContentLength
	if cl < 0 {
		cl = 0
	}
	meta["CONTENT_LENGTH"] = strconv.FormatInt(cl, 10)
	meta["GATEWAY_INTERFACE"] = "CGI/1.1"
	meta["PATH_INFO"] = pathInfo
	meta["PATH_TRANSLATED"] = pathTranslated
	meta["SCRIPT_NAME"] = scriptPath
	meta["QUERY_STRING"] = r.URL.RawQuery
	meta["REMOTE_ADDR"] = getIp(r)
	meta["REQUEST_METHOD"] = r.Method
	meta["REDIRECT_STATUS"] = "200"
	meta["SERVER_NAME"] = getDomainForRequest(r)
	port, err := getPortForRequest(r)
	if err != nil {
		return nil, err
	}
	meta["SERVER_PORT"] = strconv.Itoa(port)
	meta["SERVER_PROTOCOL"] = r.Proto

	return meta, nil
}

// splitHost splits a Host header into name and port. The port is empty
// when absent and IPv6 brackets are removed from the name.
func splitHost(host string) (string, string, error) {
	if name, port, err := net.SplitHostPort(host); err == nil {
		return name, port, nil
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1], "", nil
	}
	if strings.Contains(host, ":") {
		return "", "", fmt.Errorf("%w: %q", ErrBadHost, host)
	}
	return host, "", nil
}

func getDomainForRequest(req *http.Request) string {
	domain, _, _ := splitHost(req.Host)
	return strings.ToLower(domain)
}

func getPortForRequest(r *http.Request) (int, error) {
	_, port, err := splitHost(r.Host)
	if err != nil {
		return 0, err
	}
	if port != "" {
		return strconv.Atoi(port)
	}

	if r.TLS != nil {
		return 443, nil
	}
	sc := r.URL.Scheme
	switch sc {
	case "http", "":
		return 80, nil

	case "https":
		return 443, nil
	}
	return 0, ErrUnknownScheme
}

func getIp(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// findScript walks urlPath below cgiDir. The first regular file found is
// the script; what is left of the path is the path info. Dot-dot segments
// are resolved before walking so nothing outside cgiDir is reachable.
func findScript(cgiDir string, urlPath string) (string, string) {
	cleaned := path.Clean("/" + urlPath)
	pathparts := strings.Split(cleaned, "/")
	scriptPath := cgiDir
	for i, p := range pathparts {
		if p == "" {
			continue
		}
		testPath := scriptPath + string(os.PathSeparator) + p
		st, err := os.Stat(testPath)
		if err != nil {
			return "", "/" + strings.Join(pathparts[i:], "/")
		}
		if st.Mode().IsRegular() {
			pathInfo := ""
			if rest := pathparts[i+1:]; len(rest) > 0 {
				pathInfo = "/" + strings.Join(rest, "/")
			}
			return testPath, pathInfo
		}
		scriptPath = testPath
	}
	return "", ""
}
