package http

import (
	"errors"
	"io/fs"
	stdhttp "net/http"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// pages serves the browser client from a directory on disk.
type pages struct {
	dir string
	fs  stdhttp.FileSystem
}

func newPages(dir string) *pages {
	return &pages{dir: dir, fs: noListingFS{stdhttp.Dir(dir)}}
}

// index serves the single-page client; it reads the room token from the URL itself.
func (p *pages) index(c *gin.Context) {
	file := filepath.Join(p.dir, indexFile)
	f, err := p.fs.Open("/" + indexFile)
	if err != nil {
		c.String(stdhttp.StatusNotFound, "not found")
		return
	}
	_ = f.Close()
	c.Header("Cache-Control", "no-store")
	c.File(file)
}

func (p *pages) static(c *gin.Context) {
	if c.Request.Method != stdhttp.MethodGet && c.Request.Method != stdhttp.MethodHead {
		c.String(stdhttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := path.Clean("/" + c.Request.URL.Path)
	f, err := p.fs.Open(name)
	if err != nil {
		c.String(stdhttp.StatusNotFound, "not found")
		return
	}
	_ = f.Close()
	c.FileFromFS(name, p.fs)
}

// noListingFS hides directories that have no index page.
type noListingFS struct {
	fs stdhttp.FileSystem
}

func (n noListingFS) Open(name string) (stdhttp.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		index, err := n.fs.Open(path.Join(name, indexFile))
		if err != nil {
			_ = f.Close()
			return nil, errors.Join(fs.ErrNotExist, err)
		}
		_ = index.Close()
	}
	return f, nil
}
