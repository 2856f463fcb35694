package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/docvault/internal/intake"
)

const fetchTimeout = 30 * time.Second

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func (s *Server) ingestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Fail before downloading anything.
	if _, err := s.deps.Vault.Ensure(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = s.fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename := req.GetString("filename", "")
	if filename == "" {
		filename = filenameFromURL(rawURL)
	}

	row, err := s.deps.Intake.Ingest(ctx, intake.Upload{Filename: sanitizeFilename(filename), Data: data})
	if err != nil {
		if row.ID == "" {
			return mcp.NewToolResultError(err.Error()), nil
		}
		// The row carries the failed step; artifacts written so far stay.
		res, _ := jsonResult(row)
		res.IsError = true
		return res, nil
	}
	return jsonResult(row)
}

// decodeDataURI parses a data:application/pdf;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	if mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]; mime != "application/pdf" {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s (only application/pdf)", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads a PDF from an HTTP/HTTPS URL with security checks.
func (s *Server) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := s.checkHost(ctx, parsed.Hostname()); err != nil {
		return nil, err
	}

	client := resty.New().
		SetTransport(s.transport()).
		SetTimeout(fetchTimeout).
		SetRedirectPolicy(
			resty.FlexibleRedirectPolicy(5),
			resty.RedirectPolicyFunc(func(req *http.Request, _ []*http.Request) error {
				return s.checkHost(req.Context(), req.URL.Hostname())
			}),
		)

	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, intake.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > intake.MaxUploadSize {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", intake.MaxUploadSize)
	}
	return data, nil
}

// transport dials only addresses that pass ipCheck. The check runs on the
// resolved address, so a name that re-resolves to a blocked IP after
// checkHost is still refused. Proxies are not used.
func (s *Server) transport() *http.Transport {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			return s.ipCheck(net.ParseIP(host))
		},
	}
	return &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        1,
	}
}

// checkHost rejects hostnames whose addresses fail ipCheck. Every resolved
// address is checked.
func (s *Server) checkHost(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("blocked host: empty host")
	}
	if strings.EqualFold(host, "metadata.google.internal") {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return s.ipCheck(ip)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// The dial fails the same way and reports it.
		return nil //nolint:nilerr
	}
	for _, a := range addrs {
		if err := s.ipCheck(a.IP); err != nil {
			return fmt.Errorf("%s: %w", host, err)
		}
	}
	return nil
}

// checkBlockedIP rejects loopback, private, link-local, unspecified and
// multicast addresses, which covers cloud metadata endpoints.
func checkBlockedIP(ip net.IP) error {
	switch {
	case ip == nil:
		return fmt.Errorf("blocked host: unparseable address")
	case ip.IsLoopback():
		return fmt.Errorf("blocked host: loopback address %s", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("blocked host: unspecified address %s", ip)
	case ip.IsPrivate():
		return fmt.Errorf("blocked host: private address %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(), ip.IsInterfaceLocalMulticast():
		return fmt.Errorf("blocked host: link-local address %s", ip)
	case ip.IsMulticast():
		return fmt.Errorf("blocked host: multicast address %s", ip)
	}
	return nil
}

// filenameFromURL takes the last path segment of a URL, falling back to a
// random name for data URIs and bare hosts.
func filenameFromURL(rawURL string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	return uuid.NewString() + ".pdf"
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "_" {
		name = uuid.NewString() + ".pdf"
	}
	return name
}
