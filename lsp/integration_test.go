package lsp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dhamidi/pyscope/langserver"
	"github.com/dhamidi/pyscope/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestBootstrapMethodMatchesServer(t *testing.T) {
	assert.Equal(t, langserver.MethodBootstrapFileSystem, MethodBootstrapFileSystem)
}

func TestSessionAgainstInProcessServer(t *testing.T) {
	text := "from util import helper, nope\nhelper\nraise SystemExit\nhe"
	host := &fakeHost{text: text}
	client := transport.NewClient(transport.NewHandlerPort(langserver.New("test")))

	var logged []protocol.LogMessageParams
	logs := make(chan protocol.LogMessageParams, 1)
	s := NewSession(Options{
		RootURI:     testRoot,
		DocumentURI: testURI,
		LanguageID:  "python",
		Bootstrap:   map[string]string{"util.py": "def helper(): pass\n"},
	}, host, client, WithLogSink(func(p protocol.LogMessageParams) {
		select {
		case logs <- p:
		default:
		}
	}))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.WaitReady(ctx))

	select {
	case p := <-logs:
		logged = append(logged, p)
	case <-ctx.Done():
		t.Fatal("no log message")
	}
	assert.Contains(t, logged[0].Message, "ready")

	require.Eventually(t, func() bool { return len(host.published()) > 0 }, 5*time.Second, 10*time.Millisecond)
	diags := s.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, "Could not find nope imported from util", diags[0].Message)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, strings.Index(text, "nope"), diags[0].From)
	assert.Equal(t, SeverityInfo, diags[1].Severity)
	assert.Equal(t, []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}, diags[1].Tags)

	tip, err := s.Hover(ctx, strings.Index(text, "\nhelper")+3)
	require.NoError(t, err)
	require.NotNil(t, tip)
	assert.Contains(t, tip.Text, "(function) helper")
	assert.True(t, tip.HasEnd)
	assert.Equal(t, strings.Index(text, "\nhelper")+1, tip.From)

	// The trailing "he" is unreachable, so hover there is suppressed.
	tip, err = s.Hover(ctx, len(text)-1)
	require.NoError(t, err)
	assert.Nil(t, tip)

	res, err := s.Complete(ctx, CompletionRequest{Offset: len(text), Explicit: true})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, len(text)-2, res.From)
	var labels []string
	for _, opt := range res.Options {
		labels = append(labels, opt.Label)
	}
	assert.Contains(t, labels, "helper")
}

func TestSignatureHelpAgainstInProcessServer(t *testing.T) {
	text := "from util import helper\nhelper(1, )\n"
	client := transport.NewClient(transport.NewHandlerPort(langserver.New("test")))
	s := NewSession(Options{
		RootURI:     testRoot,
		DocumentURI: testURI,
		LanguageID:  "python",
		Bootstrap:   map[string]string{"util.py": "def helper(a, b):\n    \"\"\"Help out.\"\"\"\n"},
	}, &fakeHost{text: text}, client)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.WaitReady(ctx))

	sig, err := s.SignatureHelp(ctx, strings.Index(text, ")\n"))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "helper(a, b)", sig.Label)
	assert.Equal(t, "Help out.", sig.Documentation)
	assert.Equal(t, "b", sig.ActiveParameter())
}
