package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arerrors "github.com/standardbeagle/arabica/internal/errors"
	"github.com/standardbeagle/arabica/internal/git"
	"github.com/standardbeagle/arabica/internal/indexing"
	"github.com/standardbeagle/arabica/testhelpers"
)

func newService(t *testing.T, p *testhelpers.TestProject) *indexing.Service {
	t.Helper()
	cfg := testhelpers.NewTestConfigBuilder(p.Root).Build()
	return indexing.NewService(cfg, indexing.Resolve(context.Background(), cfg, p.Root))
}

func run(t *testing.T, svc *indexing.Service, input string) []string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, NewLoop(svc, strings.NewReader(input), &out).Run(context.Background()))
	if out.Len() == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

func TestFooBarBaz(t *testing.T) {
	p := testhelpers.NewTestProject(t).
		WithJar("lib/a.jar", "com/x/Foo.class", "com/y/Foo.class", "org/Bar.class")
	jar := p.Path("lib/a.jar")

	got := run(t, newService(t, p), fmt.Sprintf("index %s\nselect Foo\nselect Bar\nselect Baz\nexit\n", jar))

	assert.Equal(t, []string{
		"2",
		fmt.Sprintf("[1/2] index %s", jar),
		fmt.Sprintf("[2/2] index %s", jar),
		"com.x.Foo com.y.Foo",
		"org.Bar",
		"",
	}, got)
}

func TestUnreadableArchive(t *testing.T) {
	p := testhelpers.NewTestProject(t).
		WithJar("a.jar", "p/A.class").
		WithFile("b.jar", "garbage").
		WithJar("c.jar", "p/C.class")
	extra := p.Path("c.jar")

	got := run(t, newService(t, p), "index "+extra+"\n")

	require.Len(t, got, 5)
	assert.Equal(t, "4", got[0])
	assert.Equal(t, fmt.Sprintf("[1/4] index %s", p.Path("a.jar")), got[1])
	assert.True(t, strings.HasPrefix(got[2], fmt.Sprintf("[2/4] index %s: ", p.Path("b.jar"))), got[2])
	assert.Equal(t, fmt.Sprintf("[3/4] index %s", p.Path("c.jar")), got[3])
	assert.Equal(t, fmt.Sprintf("[4/4] index %s", extra), got[4])

	// A fresh session sees the persisted index
	got = run(t, newService(t, p), "select A\nselect C\n")
	assert.Equal(t, []string{"p.A", "p.C"}, got)
}

func TestIgnoredInput(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithJar("a.jar", "x/A.class")

	got := run(t, newService(t, p), strings.Join([]string{
		"",
		"   ",
		"index",
		"select",
		"frobnicate x y",
		"exit now",
		"  select   Missing   extra  ",
	}, "\n"))

	assert.Equal(t, []string{""}, got)
	assert.NoFileExists(t, p.Path(".git/arabica.db"), "index without arguments must not run")
}

func TestExitStopsProcessing(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithJar("a.jar", "x/A.class")

	got := run(t, newService(t, p), "  exit  \nindex x\n")
	assert.Nil(t, got)
	assert.NoFileExists(t, p.Path(".git/arabica.db"))
}

func TestEndOfInputWithoutNewline(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithJar("a.jar", "x/A.class")
	svc := newService(t, p)

	got := run(t, svc, "index "+p.Path("a.jar")+"\nselect A")
	assert.Equal(t, "x.A", got[len(got)-1])
}

func TestLoadErrorReported(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithFile(".git/arabica.db", "not a database")
	svc := newService(t, p)

	got := run(t, svc, "select A\n")

	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "error reading "+p.Path(".git/arabica.db")+": "), got[0])
	assert.Equal(t, "", got[1])
}

// captureLog redirects the standard logger for the rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestMissingDatabaseWarnsOnStderr(t *testing.T) {
	logs := captureLog(t)
	p := testhelpers.NewTestProject(t)

	got := run(t, newService(t, p), "select A\n")

	assert.Equal(t, []string{""}, got, "stdout carries only the select answer")
	assert.Contains(t, logs.String(), "Warning: no state file at "+p.Path(".git/arabica.db")+", starting empty")
}

func TestWriteErrorReported(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithJar("a.jar", "x/A.class")
	cfg := testhelpers.NewTestConfigBuilder(p.Root).Build()
	cfg.Database.CreateMissingDir = false
	dbPath := p.Path("nowhere/.git/arabica.db")
	svc := indexing.NewService(cfg, git.Resolution{Path: dbPath, Fallback: true})

	got := run(t, svc, "index "+p.Path("a.jar")+"\nselect A\n")

	require.Len(t, got, 5)
	assert.True(t, strings.HasPrefix(got[3], "error writing "+dbPath+": "), got[3])
	assert.Equal(t, "x.A", got[4], "in-memory index survives a failed save")
}

func TestWalkErrorReported(t *testing.T) {
	p := testhelpers.NewTestProject(t)
	root := p.Path("vanished")
	cfg := testhelpers.NewTestConfigBuilder(root).WithDatabasePath(p.Path("state.db")).Build()
	svc := indexing.NewService(cfg, indexing.Resolve(context.Background(), cfg, p.Root))

	got := run(t, svc, "index x.jar\nselect A\n")

	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "error indexing "+root+": "), got[0])
	assert.Equal(t, "", got[1])
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stdin broke") }

func TestReadErrorEndsLoop(t *testing.T) {
	p := testhelpers.NewTestProject(t)
	err := NewLoop(newService(t, p), failingReader{}, io.Discard).Run(context.Background())
	assert.ErrorContains(t, err, "stdin broke")
}

func TestContextCancelStopsLoop(t *testing.T) {
	p := testhelpers.NewTestProject(t)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewLoop(newService(t, p), pr, io.Discard).Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	require.NoError(t, pw.Close())
}

func TestWatchBatchesMergeSilently(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithJar("late.jar", "w/Late.class")
	svc := newService(t, p)

	pr, pw := io.Pipe()
	var out syncBuffer
	loop := NewLoop(svc, pr, &out)

	batches := make(chan []string)
	loop.WatchBatches(batches)

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(context.Background()) }()

	batches <- []string{p.Path("late.jar"), p.Path("missing.jar")}
	close(batches)

	_, err := io.WriteString(pw, "select Late\nexit\n")
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.NoError(t, pw.Close())

	assert.Equal(t, "w.Late\n", out.String())
	_, statErr := os.Stat(p.Path(".git/arabica.db"))
	assert.NoError(t, statErr, "watch batches are persisted")
}

func TestIndexAndLoadReturnReportedErrors(t *testing.T) {
	p := testhelpers.NewTestProject(t).WithFile(".git/arabica.db", "not a database")
	svc := newService(t, p)
	var out bytes.Buffer
	printer := NewPrinter(&out)

	require.Error(t, Load(svc, printer))
	assert.Contains(t, out.String(), "error reading ")

	out.Reset()
	require.NoError(t, os.RemoveAll(p.Root))
	var walkErr *arerrors.WalkError
	require.ErrorAs(t, Index(context.Background(), svc, printer, nil), &walkErr)
	assert.Equal(t, "error indexing "+p.Root+": "+walkErr.Error()+"\n", out.String())
}
