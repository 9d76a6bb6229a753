package tftp_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/litao91/tftpd/tftp"
	"github.com/litao91/tftpd/tftptest"
)

func startServer(t *testing.T) (*tftp.Listener, string) {
	t.Helper()
	root := t.TempDir()
	ln, err := tftp.Listen("127.0.0.1:0", tftp.Config{
		Root:           root,
		DefaultTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ln.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		ln.Close()
		<-done
	})
	return ln, root
}

func TestRRQPerfectScenario(t *testing.T) {
	ln, root := startServer(t)
	content := bytes.Repeat([]byte("a"), 1200)
	if err := os.WriteFile(filepath.Join(root, "greeting.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	c := tftptest.New(ln.Addr().String())
	got, err := c.Get("greeting.txt", "octet", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %d bytes, want %d", len(got), len(content))
	}
}

func TestRRQFileNotFound(t *testing.T) {
	ln, _ := startServer(t)
	c := tftptest.New(ln.Addr().String())
	_, err := c.Get("missing.txt", "octet", nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	terr, ok := err.(*tftp.Error)
	if !ok || terr.Code != tftp.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWRQPerfectScenario(t *testing.T) {
	ln, root := startServer(t)
	content := bytes.Repeat([]byte("b"), 1500)

	c := tftptest.New(ln.Addr().String())
	if err := c.Put("upload.bin", "octet", nil, content); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "upload.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("wrote %d bytes, want %d", len(got), len(content))
	}
}

func TestWRQFileAlreadyExists(t *testing.T) {
	ln, root := startServer(t)
	if err := os.WriteFile(filepath.Join(root, "exists.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := tftptest.New(ln.Addr().String())
	err := c.Put("exists.bin", "octet", nil, []byte("y"))
	if err == nil {
		t.Fatal("expected error writing over existing file")
	}
	terr, ok := err.(*tftp.Error)
	if !ok || terr.Code != tftp.ErrFileExists {
		t.Errorf("err = %v, want ErrFileExists", err)
	}
}

func TestRRQWithBlksizeNegotiation(t *testing.T) {
	ln, root := startServer(t)
	content := bytes.Repeat([]byte("c"), 3000)
	if err := os.WriteFile(filepath.Join(root, "big.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	c := tftptest.New(ln.Addr().String())
	got, err := c.Get("big.bin", "octet", tftp.Options{{Name: "blksize", Value: "1024"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %d bytes, want %d", len(got), len(content))
	}
}

func TestRRQEscapePathRejected(t *testing.T) {
	ln, _ := startServer(t)
	c := tftptest.New(ln.Addr().String())
	_, err := c.Get("../../etc/passwd", "octet", nil)
	if err == nil {
		t.Fatal("expected error for path escape attempt")
	}
}

func TestWRQNetasciiTranslation(t *testing.T) {
	ln, root := startServer(t)
	c := tftptest.New(ln.Addr().String())

	// A bare LF sent over the wire in netascii form arrives as CR LF; the
	// server must collapse it back to LF on disk.
	if err := c.Put("lines.txt", "netascii", nil, []byte("one\r\ntwo\r\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "lines.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("one\ntwo\n")) {
		t.Errorf("got %q, want %q", got, "one\ntwo\n")
	}
}
