package domstatic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

const storefrontHTML = `<!DOCTYPE html>
<html><body>
<nav class="main-nav">
  <ul>
    <li class="item"><a href="/c/dairy" class="cat-link">Dairy</a></li>
    <li class="item"><a href="/c/bakery" class="cat-link">Bakery</a></li>
    <li class="item"><a href="/c/frozen" class="cat-link">Frozen Food</a></li>
  </ul>
</nav>
<footer><a href="/help">Help</a></footer>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadedDriver(t *testing.T) *Driver {
	t.Helper()
	d := New(testLogger())
	if err := d.Load("https://shop.example/", storefrontHTML); err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func TestFetch_ParsesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Chrome") {
			t.Errorf("expected browser-like user agent, got %q", ua)
		}
		if al := r.Header.Get("Accept-Language"); al == "" {
			t.Error("expected Accept-Language header")
		}
		io.WriteString(w, storefrontHTML)
	}))
	defer srv.Close()

	d := New(testLogger())
	if err := d.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if d.URL() != srv.URL {
		t.Fatalf("expected URL %q, got %q", srv.URL, d.URL())
	}

	els, err := d.Query(context.Background(), "nav a.cat-link")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(els) != 3 {
		t.Fatalf("expected 3 links, got %d", len(els))
	}

	text, err := els[0].Text(context.Background())
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if strings.TrimSpace(text) != "Dairy" {
		t.Fatalf("expected Dairy, got %q", text)
	}
	href, err := els[0].Attr(context.Background(), "href")
	if err != nil {
		t.Fatalf("attr: %v", err)
	}
	if href != "/c/dairy" {
		t.Fatalf("expected /c/dairy, got %q", href)
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(testLogger())
	err := d.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestQuery_NoMatchIsEmptySlice(t *testing.T) {
	d := loadedDriver(t)
	els, err := d.Query(context.Background(), ".does-not-exist")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(els) != 0 {
		t.Fatalf("expected no matches, got %d", len(els))
	}
}

func TestQuery_InvalidSelector(t *testing.T) {
	d := loadedDriver(t)
	if _, err := d.Query(context.Background(), "li["); err == nil {
		t.Fatal("expected compile error for malformed selector")
	}
}

func TestQuery_BeforeLoad(t *testing.T) {
	d := New(testLogger())
	if _, err := d.Query(context.Background(), "a"); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestWaitVisible(t *testing.T) {
	d := loadedDriver(t)
	if err := d.WaitVisible(context.Background(), "nav .item", 0); err != nil {
		t.Fatalf("present selector: %v", err)
	}
	if err := d.WaitVisible(context.Background(), "#missing", 0); err == nil {
		t.Fatal("expected error for absent selector")
	}
}

func TestElement_ScopedQueryAndParent(t *testing.T) {
	d := loadedDriver(t)
	items, err := d.Query(context.Background(), "nav .item")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	links, err := items[0].Query(context.Background(), "a")
	if err != nil {
		t.Fatalf("scoped query: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 scoped link, got %d", len(links))
	}

	parent, err := links[0].Parent(context.Background())
	if err != nil {
		t.Fatalf("parent: %v", err)
	}
	if parent == nil {
		t.Fatal("expected li parent")
	}
	if cls, _ := parent.Attr(context.Background(), "class"); cls != "item" {
		t.Fatalf("expected item class, got %q", cls)
	}

	// The walk terminates with nil at the document root.
	var steps int
	for node := strategy.Element(parent); node != nil; steps++ {
		if steps > 20 {
			t.Fatal("parent walk did not terminate")
		}
		next, err := node.Parent(context.Background())
		if err != nil {
			t.Fatalf("parent walk: %v", err)
		}
		node = next
	}
}

func TestElement_InteractionsUnsupported(t *testing.T) {
	d := loadedDriver(t)
	els, err := d.Query(context.Background(), "a.cat-link")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if err := els[0].Hover(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported from hover, got %v", err)
	}
	if err := els[0].Click(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported from click, got %v", err)
	}
}

func TestScanLinks_OverStaticDocument(t *testing.T) {
	d := loadedDriver(t)
	pass := &strategy.Pass{
		Driver:  d,
		Counter: category.NewCounter(),
		Logger:  testLogger(),
	}

	cats, err := strategy.ScanLinks(context.Background(), pass, "nav a.cat-link")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(cats))
	}
	if cats[0].Name != "Dairy" || cats[0].URL != "/c/dairy" {
		t.Fatalf("unexpected first category %+v", cats[0])
	}
	if cats[2].Name != "Frozen Food" {
		t.Fatalf("unexpected third category %+v", cats[2])
	}
}
