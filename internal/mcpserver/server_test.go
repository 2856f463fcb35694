package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/intake"
	"github.com/starford/docvault/internal/itemservice"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/testutil"
	"github.com/starford/docvault/internal/vaultindex"
)

var samplePDF = []byte("%PDF-1.4\n% letter\n%%EOF")

type fakeBackend struct{}

func (fakeBackend) Digitize(context.Context, string, []byte) (string, error) {
	return "Dear Jane Doe", nil
}

func (fakeBackend) Extract(context.Context, string, string) (map[string]any, error) {
	return map[string]any{"title": "Letter"}, nil
}

func newServer(t *testing.T, caps *capability.Store) *Server {
	t.Helper()
	index := vaultindex.NewBuilder(caps, testutil.Logger())
	srv := New(Deps{
		Vault:    caps,
		Index:    index,
		Items:    itemservice.NewService(caps, index, testutil.Logger()),
		Intake:   intake.NewService(caps, fakeBackend{}, intake.WithLogger(testutil.Logger()), intake.WithClientResolver(index)),
		Contacts: testutil.TestDB(t),
	}, "test")
	return srv
}

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()
	caps, fsys := testutil.TestVault(t)
	return newServer(t, caps), fsys
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"load_index":        srv.loadIndex,
		"list_items":        srv.listItems,
		"read_file":         srv.readFile,
		"list_tree":         srv.listTree,
		"resolve_client":    srv.resolveClient,
		"create_memo":       srv.createMemo,
		"list_contacts":     srv.listContacts,
		"ingest_document":   srv.ingestDocument,
		"get_item_contract": srv.getItemContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateMemoAndLoadIndex(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_memo", map[string]any{"title": "Call", "text": "Left voicemail"})
	if r.IsError {
		t.Fatalf("create_memo: %s", resultText(r))
	}
	if !strings.HasPrefix(resultText(r), "created: memos/") {
		t.Errorf("create result = %q", resultText(r))
	}

	r = callTool(t, srv, "load_index", map[string]any{})
	var idx models.VaultIndex
	if err := json.Unmarshal([]byte(resultText(r)), &idx); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if len(idx.Items) != 1 || idx.Items[0].ItemType != models.ItemMemo {
		t.Errorf("items = %+v", idx.Items)
	}

	r = callTool(t, srv, "list_items", map[string]any{"type": "document"})
	if !strings.Contains(resultText(r), `"total": 0`) {
		t.Errorf("list_items documents = %s", resultText(r))
	}
}

func TestCreateMemoMissingText(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_memo", map[string]any{"title": "x"})
	if !r.IsError {
		t.Error("expected error for memo without text")
	}
}

func TestReadFileAndListTree(t *testing.T) {
	srv, fsys := testServer(t)
	_ = fsys.WriteFile("documents/a/text.txt", []byte("ocr text"))

	r := callTool(t, srv, "read_file", map[string]any{"path": "documents/a/text.txt"})
	if resultText(r) != "ocr text" {
		t.Errorf("read = %q", resultText(r))
	}

	r = callTool(t, srv, "read_file", map[string]any{"path": "nope.txt"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
	r = callTool(t, srv, "read_file", map[string]any{"path": "../etc/passwd"})
	if !r.IsError {
		t.Error("expected error for traversal")
	}

	r = callTool(t, srv, "list_tree", map[string]any{})
	text := resultText(r)
	for _, want := range []string{"documents/", "documents/a/", "documents/a/text.txt"} {
		if !strings.Contains(text, want) {
			t.Errorf("tree missing %q:\n%s", want, text)
		}
	}
}

func TestResolveClient(t *testing.T) {
	srv, fsys := testServer(t)
	_ = fsys.WriteFile(vaultindex.ClientsFile, []byte(`{"clients":[
		{"id":"c1","name":"Jane Doe","first_name":"Jane","last_name":"Doe","role":"client","emails":[],"phones":[]}
	]}`))

	r := callTool(t, srv, "resolve_client", map[string]any{"text": "to JANE doe"})
	if resultText(r) != "c1" {
		t.Errorf("resolve = %q, want c1", resultText(r))
	}
	r = callTool(t, srv, "resolve_client", map[string]any{"text": "to John"})
	if resultText(r) != "no matching client" {
		t.Errorf("resolve = %q", resultText(r))
	}
}

func TestListContacts(t *testing.T) {
	srv, _ := testServer(t)
	if _, err := srv.deps.Contacts.CreateContact(context.Background(), models.Contact{Name: "Ann Lee", Role: "adjuster"}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_contacts", map[string]any{"query": "adjust"})
	if !strings.Contains(resultText(r), "Ann Lee") {
		t.Errorf("contacts = %s", resultText(r))
	}
}

func TestToolsWithoutVault(t *testing.T) {
	srv := newServer(t, capability.NewStore(capability.WithLogger(testutil.Logger())))

	for _, name := range []string{"load_index", "list_tree", "create_memo", "ingest_document"} {
		r := callTool(t, srv, name, map[string]any{"path": "x", "title": "t", "text": "x", "url": "data:application/pdf;base64,"})
		if !r.IsError || !strings.Contains(resultText(r), "vault not selected") {
			t.Errorf("%s without vault = %q", name, resultText(r))
		}
	}
}

func TestIngestDocument_DataURI(t *testing.T) {
	srv, fsys := testServer(t)
	uri := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(samplePDF)

	r := callTool(t, srv, "ingest_document", map[string]any{"url": uri, "filename": "../letter.pdf"})
	if r.IsError {
		t.Fatalf("ingest: %s", resultText(r))
	}
	var row intake.Row
	if err := json.Unmarshal([]byte(resultText(r)), &row); err != nil {
		t.Fatal(err)
	}
	if row.State != intake.StateReady || row.Filename != "letter.pdf" {
		t.Errorf("row = %+v", row)
	}
	if row.DocumentID != checksum.DocumentID(samplePDF) {
		t.Errorf("document id = %s", row.DocumentID)
	}
	if _, err := fsys.ReadFile("documents/" + row.DocumentID + "/source.pdf"); err != nil {
		t.Errorf("source.pdf: %v", err)
	}
}

func TestIngestDocument_HTTP(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/scan.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(samplePDF)
	}))
	defer ts.Close()
	// The test server listens on loopback.
	srv.ipCheck = func(net.IP) error { return nil }

	r := callTool(t, srv, "ingest_document", map[string]any{"url": ts.URL + "/files/scan.pdf"})
	if r.IsError {
		t.Fatalf("ingest: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"filename": "scan.pdf"`) {
		t.Errorf("row = %s", resultText(r))
	}

	r = callTool(t, srv, "ingest_document", map[string]any{"url": ts.URL + "/missing.pdf"})
	if !r.IsError || !strings.Contains(resultText(r), "HTTP 404") {
		t.Errorf("missing = %q", resultText(r))
	}
}

func TestIngestDocument_Rejected(t *testing.T) {
	srv, _ := testServer(t)

	cases := map[string]string{
		"ftp://example.com/a.pdf":               "unsupported scheme",
		"http://127.0.0.1/a.pdf":                "loopback",
		"data:image/png;base64,AAAA":            "unsupported MIME type",
		"data:application/pdf,plain":            "only base64",
		"data:application/pdf;base64,R0lGODlh": "not a PDF",
	}
	for url, want := range cases {
		r := callTool(t, srv, "ingest_document", map[string]any{"url": url})
		if !r.IsError || !strings.Contains(resultText(r), want) {
			t.Errorf("%s = %q, want error containing %q", url, resultText(r), want)
		}
	}
}

func TestCheckBlockedIP(t *testing.T) {
	blocked := []string{
		"127.0.0.1", "::1", "0.0.0.0", "::",
		"10.0.0.1", "172.16.0.5", "192.168.1.10", "fd00::1",
		"169.254.1.1", "169.254.169.254", "fe80::1", "224.0.0.1",
		"::ffff:127.0.0.1", "::ffff:10.1.2.3",
	}
	for _, host := range blocked {
		if err := checkBlockedIP(net.ParseIP(host)); err == nil {
			t.Errorf("%s: expected blocked", host)
		}
	}

	allowed := []string{"93.184.216.34", "8.8.8.8", "2606:4700:4700::1111"}
	for _, host := range allowed {
		if err := checkBlockedIP(net.ParseIP(host)); err != nil {
			t.Errorf("%s: unexpected error %v", host, err)
		}
	}

	if err := checkBlockedIP(nil); err == nil {
		t.Error("nil IP should be blocked")
	}
}

func TestIngestDocument_PrivateHostsRejected(t *testing.T) {
	srv, _ := testServer(t)

	for _, u := range []string{
		"http://0.0.0.0/a.pdf",
		"http://[::]/a.pdf",
		"http://10.0.0.1/a.pdf",
		"http://192.168.1.10/a.pdf",
		"http://169.254.1.1/a.pdf",
		"http://metadata.google.internal/a.pdf",
	} {
		r := callTool(t, srv, "ingest_document", map[string]any{"url": u})
		if !r.IsError || !strings.Contains(resultText(r), "blocked host") {
			t.Errorf("%s = %q, want blocked host", u, resultText(r))
		}
	}
}

func TestIngestDocument_DialTimeCheck(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(samplePDF)
	}))
	defer ts.Close()

	// The first check passes, as if the name resolved to a public address;
	// the dial then sees the loopback listener.
	var calls atomic.Int32
	srv.ipCheck = func(ip net.IP) error {
		if calls.Add(1) == 1 {
			return nil
		}
		return checkBlockedIP(ip)
	}

	r := callTool(t, srv, "ingest_document", map[string]any{"url": ts.URL + "/scan.pdf"})
	if !r.IsError || !strings.Contains(resultText(r), "loopback") {
		t.Errorf("result = %q, want dial refused for loopback", resultText(r))
	}
	if calls.Load() < 2 {
		t.Errorf("ipCheck calls = %d, want the dial to be checked", calls.Load())
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"scan.pdf":           "scan.pdf",
		"../../etc/x.pdf":    "x.pdf",
		`C:\docs\my scan.pdf`: "my_scan.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := filenameFromURL("https://example.com/"); !strings.HasSuffix(got, ".pdf") {
		t.Errorf("fallback name = %q", got)
	}
}

func TestItemContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_item_contract", map[string]any{})
	if !strings.Contains(resultText(r), "item_version") {
		t.Error("contract does not describe the envelope")
	}
}
