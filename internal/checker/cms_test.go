package checker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const wpPage = `<html><head>
<meta name="generator" content="WordPress 6.4">
<link rel="stylesheet" href="/wp-content/themes/site/style.css">
<title>Blog</title>
</head><body><p>%s</p></body></html>`

func padding(n int) string {
	return strings.Repeat("x", n)
}

func TestCollectBodyFeatures(t *testing.T) {
	t.Parallel()

	features := make(featureSet)
	collectBodyFeatures(`<script src="/wp-content/a.js"></script> xmlrpc.php /wp/v2/ wp-embed.min.js`, features)

	require.Contains(t, features, "wp-content")
	require.Contains(t, features, "xmlrpc")
	require.Contains(t, features, "wp-json")
	require.Contains(t, features, "wp-scripts")
}

func TestCollectDocFeatures(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, fmt.Sprintf(wpPage, padding(10)))
	features := make(featureSet)
	collectDocFeatures(doc, features)

	require.Contains(t, features, "meta_generator")
	require.Contains(t, features, "wp_links")
}

func TestCollectDocFeaturesLinksCountOnce(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `<html><body>
		<a href="/wp-content/a"></a>
		<a href="/wp-content/b"></a>
		<script src="/wp-includes/c.js"></script>
	</body></html>`)
	features := make(featureSet)
	collectDocFeatures(doc, features)

	// Many matching elements still contribute a single feature.
	require.Equal(t, featureSet{"wp_links": struct{}{}}, features)
}

func TestCollectHeaderFeatures(t *testing.T) {
	t.Parallel()

	resp := &Response{
		Headers: http.Header{"Link": []string{`<https://example.com/wp-json/>; rel="https://api.w.org/"`}},
		Cookies: []*http.Cookie{{Name: "wordpress_logged_in_abc", Value: "1"}},
	}
	features := make(featureSet)
	collectHeaderFeatures(resp, features)

	require.Contains(t, features, "header_link_wp")
	require.Contains(t, features, "wp_cookies")
}

func TestIsWordPressThreshold(t *testing.T) {
	t.Parallel()

	features := make(featureSet)
	require.False(t, isWordPress(features))
	features.add("wp-content")
	require.False(t, isWordPress(features), "one signal alone is not enough")
	features.add("meta_generator")
	require.True(t, isWordPress(features))
}

func TestClassifyWordPressWithoutProbes(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			probes.Add(1)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, wpPage, padding(600))
	}))
	defer srv.Close()

	c := NewClassifier(NewFetcher(testRuntime(), nil), nil)
	name, debug := c.Classify(context.Background(), srv.URL+"/")

	require.Equal(t, CMSWordPress, name)
	require.Contains(t, debug, "features=")
	require.Zero(t, probes.Load(), "two cheap signals must decide without endpoint probes")
}

func TestClassifyUsesEndpointProbesWhenInconclusive(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-login.php", "/wp-json/":
			w.WriteHeader(http.StatusForbidden)
		case "/wp-admin/":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", padding(600))
		}
	}))
	defer srv.Close()

	c := NewClassifier(NewFetcher(testRuntime(), nil), nil)
	name, _ := c.Classify(context.Background(), srv.URL+"/")

	require.Equal(t, CMSWordPress, name, "two positive endpoint probes reach the threshold")
}

func TestClassifyRejectionTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantDebug string
	}{
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantDebug: "http_404",
		},
		{
			name: "non html content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{}`))
			},
			wantDebug: "non_html_content_type",
		},
		{
			name: "short body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html></html>"))
			},
			wantDebug: "short_html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClassifier(NewFetcher(testRuntime(), nil), nil)
			name, debug := c.Classify(context.Background(), srv.URL+"/")

			require.Equal(t, CMSUnknown, name)
			require.Contains(t, debug, tt.wantDebug)
		})
	}
}

func TestClassifyForge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<html><body><link href="./styles/tinymce.css"><p>%s</p></body></html>`, padding(600))
	}))
	defer srv.Close()

	c := NewClassifier(NewFetcher(testRuntime(), nil), nil)
	name, _ := c.Classify(context.Background(), srv.URL+"/")

	require.Equal(t, CMSForge, name)
}

func TestClassifyNoSignals(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", padding(600))
	}))
	defer srv.Close()

	c := NewClassifier(NewFetcher(testRuntime(), nil), nil)
	name, debug := c.Classify(context.Background(), srv.URL+"/")

	require.Equal(t, CMSUnknown, name)
	require.Contains(t, debug, "no_wp_signals")
}

func TestDetectForge(t *testing.T) {
	t.Parallel()

	require.True(t, detectForge("x encrypted.php?key=btn_link1 y"))
	require.False(t, detectForge("plain page"))
}

func TestAlternateScheme(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://example.com/", alternateScheme("https://example.com/"))
	require.Equal(t, "https://example.com/", alternateScheme("http://example.com/"))
	require.Empty(t, alternateScheme("ftp://example.com/"))
}
