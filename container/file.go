/*
 * file.go, part of westore.
 *
 * Copyright 2026 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package container implements the hierarchical, path-addressed storage an
//archive lives in. Groups, resizable datasets, JSON value nodes and external
//links are kept as nodes of a single SQLite file, and dataset rows are stored
//as append-only chunks.
package container

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

//Kind is the type of a node.
type Kind string

const (
	KindGroup   Kind = "group"
	KindDataset Kind = "dataset"
	KindValue   Kind = "value"
	KindLink    Kind = "link"
)

//Info describes a node. For datasets FeatureShape is the shape of one row.
type Info struct {
	Path         string
	Kind         Kind
	Dtype        nd.Dtype
	FeatureShape nd.Shape
	VarLen       bool
	NRows        int
}

//Option configures a File.
type Option func(*File)

//WithCodec sets the codec used for new chunks.
func WithCodec(c Codec) Option {
	return func(f *File) { f.codec = c }
}

//WithLogger sets the logger of the file.
func WithLogger(l *zap.Logger) Option {
	return func(f *File) {
		if l != nil {
			f.log = l
		}
	}
}

type link struct {
	file   string
	target string
}

//File is an open container. A File is safe for concurrent reads, writes
//are expected from a single goroutine.
type File struct {
	path     string
	db       *sql.DB
	readOnly bool
	lock     *flock.Flock
	codec    Codec
	log      *zap.Logger

	mu      sync.Mutex
	links   map[string]link
	foreign map[string]*File
	closed  bool
}

//Open opens the container in the file name. A missing file is created
//unless readOnly is set. Writable containers hold an exclusive lock on
//name+".lock" until closed.
func Open(name string, readOnly bool, opts ...Option) (*File, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	f := &File{
		path:     abs,
		readOnly: readOnly,
		codec:    Zstd,
		log:      zap.L(),
		links:    make(map[string]link),
		foreign:  make(map[string]*File),
	}
	for _, o := range opts {
		o(f)
	}
	if readOnly {
		if _, err := os.Stat(abs); err != nil {
			return nil, werr.New(werr.ModeViolation, abs, "container.Open", "can't open a missing file read-only: %v", err)
		}
	} else {
		f.lock = flock.New(abs + ".lock")
		locked, err := f.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("container.Open: cannot acquire lock: %w", err)
		}
		if !locked {
			return nil, werr.New(werr.Locked, abs, "container.Open", "lock %s is held", abs+".lock")
		}
	}
	dsn := "file:" + abs + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	if readOnly {
		dsn = "file:" + abs + "?mode=ro&_pragma=busy_timeout(5000)&_pragma=query_only(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		f.unlock()
		return nil, err
	}
	//Rows are always consumed and closed before a new statement is issued.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		f.unlock()
		return nil, fmt.Errorf("container.Open: %w", err)
	}
	f.db = db
	if !readOnly {
		if err := createTables(db); err != nil {
			f.Close()
			return nil, fmt.Errorf("container.Open: %w", err)
		}
	}
	if err := f.loadLinks(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			path TEXT PRIMARY KEY,
			parent TEXT NOT NULL,
			kind TEXT NOT NULL,
			dtype TEXT NOT NULL DEFAULT '',
			shape TEXT NOT NULL DEFAULT '[]',
			vlen INTEGER NOT NULL DEFAULT 0,
			nrows INTEGER NOT NULL DEFAULT 0,
			value BLOB,
			attrs TEXT NOT NULL DEFAULT '{}',
			link_file TEXT NOT NULL DEFAULT '',
			link_target TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS nodes_parent ON nodes(parent)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			path TEXT NOT NULL,
			seq INTEGER NOT NULL,
			row_start INTEGER NOT NULL,
			nrows INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (path, seq)
		)`,
		`INSERT OR IGNORE INTO nodes (path, parent, kind) VALUES ('', '', 'group')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (F *File) loadLinks() error {
	rows, err := F.db.Query(`SELECT path, link_file, link_target FROM nodes WHERE kind = 'link'`)
	if err != nil {
		return werr.New(werr.ModeViolation, F.path, "container.Open", "not an archive container: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		var l link
		if err := rows.Scan(&p, &l.file, &l.target); err != nil {
			return err
		}
		F.links[p] = l
	}
	return rows.Err()
}

func (F *File) unlock() {
	if F.lock != nil {
		_ = F.lock.Unlock()
		F.lock = nil
	}
}

//Close closes the file, any file opened to resolve links, and releases
//the write lock. Closing twice is a no-op.
func (F *File) Close() error {
	F.mu.Lock()
	defer F.mu.Unlock()
	if F.closed {
		return nil
	}
	F.closed = true
	for _, ff := range F.foreign {
		ff.Close()
	}
	F.foreign = nil
	var err error
	if F.db != nil {
		err = F.db.Close()
	}
	F.unlock()
	return err
}

//Path returns the absolute file name.
func (F *File) Path() string { return F.path }

//ReadOnly is true if the file refuses every mutation.
func (F *File) ReadOnly() bool { return F.readOnly }

//Codec returns the codec new chunks are written with.
func (F *File) Codec() Codec { return F.codec }

//Clean normalizes a node path: no leading or trailing slashes, no empty
//or dot elements. The root is the empty string.
func Clean(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

//Join joins path elements into a node path.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

func parentOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

//linkFor returns the link that p lives under, with the remainder of p
//relative to the link target.
func (F *File) linkFor(p string) (string, link, string, bool) {
	F.mu.Lock()
	defer F.mu.Unlock()
	for q := p; q != ""; q = parentOf(q) {
		if l, ok := F.links[q]; ok {
			rest := strings.TrimPrefix(strings.TrimPrefix(p, q), "/")
			return q, l, rest, true
		}
	}
	return "", link{}, "", false
}

func (F *File) foreignFile(name string) (*File, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(filepath.Dir(F.path), name)
	}
	name = filepath.Clean(name)
	F.mu.Lock()
	defer F.mu.Unlock()
	if F.closed {
		return nil, werr.New(werr.Closed, F.path, "container.foreignFile", "file is closed")
	}
	if ff, ok := F.foreign[name]; ok {
		return ff, nil
	}
	ff, err := Open(name, true, WithLogger(F.log))
	if err != nil {
		return nil, werr.Decorate(err, "container.foreignFile")
	}
	F.log.Debug("opened linked file", zap.String("file", F.path), zap.String("linked", name))
	F.foreign[name] = ff
	return ff, nil
}

//resolve follows the external links p lives under and returns the file
//and the path inside it that hold the node.
func (F *File) resolve(p string) (*File, string, error) {
	p = Clean(p)
	if F.isClosed() {
		return nil, "", werr.New(werr.Closed, F.path, "container.resolve", "file is closed")
	}
	_, l, rest, ok := F.linkFor(p)
	if !ok {
		return F, p, nil
	}
	ff, err := F.foreignFile(l.file)
	if err != nil {
		return nil, "", err
	}
	return ff.resolve(Join(l.target, rest))
}

func (F *File) isClosed() bool {
	F.mu.Lock()
	defer F.mu.Unlock()
	return F.closed
}

//writable fails when the file is read-only or p lives under a link.
func (F *File) writable(p, caller string) error {
	if F.isClosed() {
		return werr.New(werr.Closed, F.path, caller, "file is closed")
	}
	if F.readOnly {
		return werr.New(werr.ModeViolation, F.path, caller, "file is open read-only")
	}
	if lp, _, _, ok := F.linkFor(p); ok {
		return werr.New(werr.ModeViolation, F.path, caller, "%s is under the external link %s", p, lp)
	}
	return nil
}

type node struct {
	path     string
	kind     Kind
	dtype    nd.Dtype
	shape    nd.Shape
	vlen     bool
	nrows    int
	value    []byte
	attrs    string
	linkFile string
	linkTgt  string
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func getNode(q querier, p string) (*node, error) {
	n := &node{path: p}
	var kind, dtype, shape string
	var vlen int
	err := q.QueryRow(`SELECT kind, dtype, shape, vlen, nrows, value, attrs, link_file, link_target
		FROM nodes WHERE path = ?`, p).Scan(&kind, &dtype, &shape, &vlen, &n.nrows, &n.value, &n.attrs, &n.linkFile, &n.linkTgt)
	if err != nil {
		return nil, err
	}
	n.kind = Kind(kind)
	n.dtype = nd.Dtype(dtype)
	n.vlen = vlen != 0
	if err := json.Unmarshal([]byte(shape), &n.shape); err != nil {
		return nil, fmt.Errorf("bad shape for %s: %w", p, err)
	}
	if n.shape == nil {
		n.shape = nd.Shape{}
	}
	return n, nil
}

func (F *File) node(p, caller string) (*File, *node, error) {
	ff, rp, err := F.resolve(p)
	if err != nil {
		return nil, nil, werr.Decorate(err, caller)
	}
	n, err := getNode(ff.db, rp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, werr.New(werr.FieldNotFound, F.path, caller, "no node at %s", Clean(p))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", caller, err)
	}
	return ff, n, nil
}

//Exists reports whether there is a node at p.
func (F *File) Exists(p string) (bool, error) {
	_, _, err := F.node(p, "container.Exists")
	if errors.Is(err, werr.FieldNotFound) {
		return false, nil
	}
	return err == nil, err
}

//Info returns the description of the node at p, following links.
func (F *File) Info(p string) (Info, error) {
	_, n, err := F.node(p, "container.Info")
	if err != nil {
		return Info{}, err
	}
	return Info{Path: Clean(p), Kind: n.kind, Dtype: n.dtype, FeatureShape: n.shape, VarLen: n.vlen, NRows: n.nrows}, nil
}

//Children returns the names of the nodes directly under p. Names that are
//all integers are sorted numerically and come first.
func (F *File) Children(p string) ([]string, error) {
	ff, n, err := F.node(p, "container.Children")
	if err != nil {
		return nil, err
	}
	if n.kind != KindGroup {
		return nil, werr.New(werr.FieldNotFound, F.path, "container.Children", "%s is a %s, not a group", Clean(p), n.kind)
	}
	rows, err := ff.db.Query(`SELECT path FROM nodes WHERE parent = ? AND path != ''`, n.path)
	if err != nil {
		return nil, fmt.Errorf("container.Children: %w", err)
	}
	var names []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, path.Base(c))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortNames(names)
	return names, nil
}

func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, erra := strconv.Atoi(names[i])
		b, errb := strconv.Atoi(names[j])
		switch {
		case erra == nil && errb == nil:
			return a < b
		case erra == nil:
			return true
		case errb == nil:
			return false
		}
		return names[i] < names[j]
	})
}

//mkdirs creates every missing group from the root down to p, included.
func mkdirs(q querier, p string) error {
	if p == "" {
		return nil
	}
	if err := mkdirs(q, parentOf(p)); err != nil {
		return err
	}
	n, err := getNode(q, p)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = q.Exec(`INSERT INTO nodes (path, parent, kind) VALUES (?, ?, 'group')`, p, parentOf(p))
		return err
	}
	if err != nil {
		return err
	}
	if n.kind != KindGroup {
		return werr.New(werr.SchemaConflict, "", "container.mkdirs", "%s is a %s, not a group", p, n.kind)
	}
	return nil
}

func (F *File) begin(p, caller string) (*sql.Tx, string, error) {
	p = Clean(p)
	if err := F.writable(p, caller); err != nil {
		return nil, "", err
	}
	tx, err := F.db.Begin()
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", caller, err)
	}
	return tx, p, nil
}

func finish(tx *sql.Tx, err error, caller string) error {
	if err != nil {
		_ = tx.Rollback()
		return werr.Decorate(err, caller)
	}
	return werr.Decorate(tx.Commit(), caller)
}

//CreateGroup creates the group p and every missing parent. Creating a
//group that already exists is not an error.
func (F *File) CreateGroup(p string) error {
	tx, p, err := F.begin(p, "container.CreateGroup")
	if err != nil {
		return err
	}
	return finish(tx, mkdirs(tx, p), "container.CreateGroup")
}

//CreateDataset creates an empty dataset whose rows have the given dtype
//and feature shape. For variable-length datasets featureShape is ignored
//and each row is a flat list of any length.
func (F *File) CreateDataset(p string, dtype nd.Dtype, featureShape nd.Shape, varLen bool) error {
	tx, p, err := F.begin(p, "container.CreateDataset")
	if err != nil {
		return err
	}
	if !dtype.Valid() {
		_ = tx.Rollback()
		return werr.New(werr.SchemaConflict, F.path, "container.CreateDataset", "invalid dtype %q for %s", dtype, p)
	}
	err = func() error {
		if _, err := getNode(tx, p); err == nil {
			return werr.New(werr.SchemaConflict, F.path, "container.CreateDataset", "%s already exists", p)
		}
		if err := mkdirs(tx, parentOf(p)); err != nil {
			return err
		}
		if varLen || featureShape == nil {
			featureShape = nd.Shape{}
		}
		shape, _ := json.Marshal([]int(featureShape))
		_, err := tx.Exec(`INSERT INTO nodes (path, parent, kind, dtype, shape, vlen) VALUES (?, ?, 'dataset', ?, ?, ?)`,
			p, parentOf(p), string(dtype), string(shape), boolInt(varLen))
		return err
	}()
	return finish(tx, err, "container.CreateDataset")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func datasetTx(tx *sql.Tx, p string, varLen bool, caller string) (*node, error) {
	n, err := getNode(tx, p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, werr.New(werr.FieldNotFound, "", caller, "no dataset at %s", p)
	}
	if err != nil {
		return nil, err
	}
	if n.kind != KindDataset {
		return nil, werr.New(werr.FieldNotFound, "", caller, "%s is a %s, not a dataset", p, n.kind)
	}
	if n.vlen != varLen {
		return nil, werr.New(werr.ShapeMismatch, "", caller, "%s variable length is %v", p, n.vlen)
	}
	return n, nil
}

func appendChunk(tx *sql.Tx, n *node, rows int, payload []byte) error {
	var seq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM chunks WHERE path = ?`, n.path).Scan(&seq); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO chunks (path, seq, row_start, nrows, payload) VALUES (?, ?, ?, ?, ?)`,
		n.path, seq, n.nrows, rows, payload); err != nil {
		return err
	}
	_, err := tx.Exec(`UPDATE nodes SET nrows = nrows + ? WHERE path = ?`, rows, n.path)
	return err
}

//Append adds the frames of a to the end of the dataset p. The feature
//shape of a must match the dataset's. Rows already stored are never
//rewritten.
func (F *File) Append(p string, a *nd.Array) error {
	tx, p, err := F.begin(p, "container.Append")
	if err != nil {
		return err
	}
	err = func() error {
		n, err := datasetTx(tx, p, false, "container.Append")
		if err != nil {
			return err
		}
		if !a.FeatureShape().Equal(n.shape) {
			return werr.New(werr.ShapeMismatch, F.path, "container.Append", "%s has feature shape %v, got %v", p, n.shape, a.FeatureShape())
		}
		if a.Len() == 0 {
			return nil
		}
		payload, err := encodeChunk(F.codec, n.dtype, a.Data())
		if err != nil {
			return err
		}
		return appendChunk(tx, n, a.Len(), payload)
	}()
	return finish(tx, err, "container.Append")
}

//AppendRagged adds variable-length rows to the dataset p.
func (F *File) AppendRagged(p string, rows [][]float64) error {
	tx, p, err := F.begin(p, "container.AppendRagged")
	if err != nil {
		return err
	}
	err = func() error {
		n, err := datasetTx(tx, p, true, "container.AppendRagged")
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		payload, err := encodeRagged(F.codec, n.dtype, rows)
		if err != nil {
			return err
		}
		return appendChunk(tx, n, len(rows), payload)
	}()
	return finish(tx, err, "container.AppendRagged")
}

type chunk struct {
	start, n int
	payload  []byte
}

func chunksIn(db *sql.DB, p string, start, end int) ([]chunk, error) {
	rows, err := db.Query(`SELECT row_start, nrows, payload FROM chunks
		WHERE path = ? AND row_start < ? AND row_start + nrows > ? ORDER BY seq`, p, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cs []chunk
	for rows.Next() {
		var c chunk
		if err := rows.Scan(&c.start, &c.n, &c.payload); err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, rows.Err()
}

func (F *File) dataset(p string, varLen bool, caller string) (*File, *node, error) {
	ff, n, err := F.node(p, caller)
	if err != nil {
		return nil, nil, err
	}
	if n.kind != KindDataset {
		return nil, nil, werr.New(werr.FieldNotFound, F.path, caller, "%s is a %s, not a dataset", Clean(p), n.kind)
	}
	if n.vlen != varLen {
		return nil, nil, werr.New(werr.ShapeMismatch, F.path, caller, "%s variable length is %v", Clean(p), n.vlen)
	}
	return ff, n, nil
}

//ReadRows reads rows [start, end) of the dataset p. Only the chunks that
//overlap the range are decoded.
func (F *File) ReadRows(p string, start, end int) (*nd.Array, error) {
	ff, n, err := F.dataset(p, false, "container.ReadRows")
	if err != nil {
		return nil, err
	}
	if start < 0 || end > n.nrows || start > end {
		return nil, werr.New(werr.ShapeMismatch, F.path, "container.ReadRows", "rows [%d, %d) out of %d in %s", start, end, n.nrows, Clean(p))
	}
	out := nd.New(n.dtype, append(nd.Shape{end - start}, n.shape...)...)
	if start == end {
		return out, nil
	}
	cs, err := chunksIn(ff.db, n.path, start, end)
	if err != nil {
		return nil, fmt.Errorf("container.ReadRows: %w", err)
	}
	fs := n.shape.Size()
	data := out.Data()
	for _, c := range cs {
		vals, err := decodeChunk(c.payload, n.dtype, c.n*fs)
		if err != nil {
			return nil, fmt.Errorf("container.ReadRows %s: %w", Clean(p), err)
		}
		lo := max(start, c.start)
		hi := min(end, c.start+c.n)
		copy(data[(lo-start)*fs:(hi-start)*fs], vals[(lo-c.start)*fs:(hi-c.start)*fs])
	}
	return out, nil
}

//ReadAll reads every row of the dataset p.
func (F *File) ReadAll(p string) (*nd.Array, error) {
	info, err := F.Info(p)
	if err != nil {
		return nil, err
	}
	return F.ReadRows(p, 0, info.NRows)
}

//ReadFrames reads the listed rows of the dataset p, in the given order.
func (F *File) ReadFrames(p string, frames []int) (*nd.Array, error) {
	info, err := F.Info(p)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return F.ReadRows(p, 0, 0)
	}
	lo, hi := frames[0], frames[0]
	for _, i := range frames {
		if i < 0 || i >= info.NRows {
			return nil, werr.New(werr.ShapeMismatch, F.path, "container.ReadFrames", "frame %d out of %d in %s", i, info.NRows, Clean(p))
		}
		lo = min(lo, i)
		hi = max(hi, i)
	}
	block, err := F.ReadRows(p, lo, hi+1)
	if err != nil {
		return nil, err
	}
	local := make([]int, len(frames))
	for i, v := range frames {
		local[i] = v - lo
	}
	return block.Take(local)
}

//ReadRagged reads rows [start, end) of a variable-length dataset. A
//negative end means every row.
func (F *File) ReadRagged(p string, start, end int) (*nd.Ragged, error) {
	ff, n, err := F.dataset(p, true, "container.ReadRagged")
	if err != nil {
		return nil, err
	}
	if end < 0 {
		end = n.nrows
	}
	if start < 0 || end > n.nrows || start > end {
		return nil, werr.New(werr.ShapeMismatch, F.path, "container.ReadRagged", "rows [%d, %d) out of %d in %s", start, end, n.nrows, Clean(p))
	}
	out := &nd.Ragged{Dtype: n.dtype, Rows: make([][]float64, 0, end-start)}
	cs, err := chunksIn(ff.db, n.path, start, end)
	if err != nil {
		return nil, fmt.Errorf("container.ReadRagged: %w", err)
	}
	for _, c := range cs {
		rows, err := decodeRagged(c.payload, n.dtype, c.n)
		if err != nil {
			return nil, fmt.Errorf("container.ReadRagged %s: %w", Clean(p), err)
		}
		lo := max(start, c.start)
		hi := min(end, c.start+c.n)
		out.Rows = append(out.Rows, rows[lo-c.start:hi-c.start]...)
	}
	return out, nil
}

//SetValue stores v, JSON encoded, in the value node p. An existing value
//node is overwritten.
func (F *File) SetValue(p string, v any) error {
	tx, p, err := F.begin(p, "container.SetValue")
	if err != nil {
		return err
	}
	err = func() error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if n, err := getNode(tx, p); err == nil && n.kind != KindValue {
			return werr.New(werr.SchemaConflict, F.path, "container.SetValue", "%s is a %s, not a value", p, n.kind)
		}
		if err := mkdirs(tx, parentOf(p)); err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO nodes (path, parent, kind, value) VALUES (?, ?, 'value', ?)
			ON CONFLICT(path) DO UPDATE SET value = excluded.value`, p, parentOf(p), b)
		return err
	}()
	return finish(tx, err, "container.SetValue")
}

//Value decodes the value node p into dst.
func (F *File) Value(p string, dst any) error {
	_, n, err := F.node(p, "container.Value")
	if err != nil {
		return err
	}
	if n.kind != KindValue {
		return werr.New(werr.FieldNotFound, F.path, "container.Value", "%s is a %s, not a value", Clean(p), n.kind)
	}
	if err := json.Unmarshal(n.value, dst); err != nil {
		return fmt.Errorf("container.Value %s: %w", Clean(p), err)
	}
	return nil
}

//RawValue returns the stored JSON of the value node p.
func (F *File) RawValue(p string) (json.RawMessage, error) {
	var m json.RawMessage
	err := F.Value(p, &m)
	return m, err
}

//Attrs returns the attributes of the node p.
func (F *File) Attrs(p string) (map[string]any, error) {
	_, n, err := F.node(p, "container.Attrs")
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]any)
	if err := json.Unmarshal([]byte(n.attrs), &attrs); err != nil {
		return nil, fmt.Errorf("container.Attrs %s: %w", Clean(p), err)
	}
	return attrs, nil
}

//SetAttrs merges attrs into the attributes of the node p.
func (F *File) SetAttrs(p string, attrs map[string]any) error {
	tx, p, err := F.begin(p, "container.SetAttrs")
	if err != nil {
		return err
	}
	err = func() error {
		n, err := getNode(tx, p)
		if errors.Is(err, sql.ErrNoRows) {
			return werr.New(werr.FieldNotFound, F.path, "container.SetAttrs", "no node at %s", p)
		}
		if err != nil {
			return err
		}
		cur := make(map[string]any)
		if err := json.Unmarshal([]byte(n.attrs), &cur); err != nil {
			return err
		}
		for k, v := range attrs {
			cur[k] = v
		}
		b, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE nodes SET attrs = ? WHERE path = ?`, string(b), p)
		return err
	}()
	return finish(tx, err, "container.SetAttrs")
}

//Link creates p as an external link to the node target of the file name.
//A relative name is resolved against the directory of F. The target must
//exist.
func (F *File) Link(p, name, target string) error {
	p = Clean(p)
	target = Clean(target)
	if err := F.writable(p, "container.Link"); err != nil {
		return err
	}
	ff, err := F.foreignFile(name)
	if err != nil {
		return werr.Decorate(err, "container.Link")
	}
	if ok, err := ff.Exists(target); err != nil || !ok {
		if err == nil {
			err = werr.New(werr.FieldNotFound, ff.path, "container.Link", "no node at %s", target)
		}
		return werr.Decorate(err, "container.Link")
	}
	tx, err := F.db.Begin()
	if err != nil {
		return fmt.Errorf("container.Link: %w", err)
	}
	err = func() error {
		if _, err := getNode(tx, p); err == nil {
			return werr.New(werr.SchemaConflict, F.path, "container.Link", "%s already exists", p)
		}
		if err := mkdirs(tx, parentOf(p)); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO nodes (path, parent, kind, link_file, link_target) VALUES (?, ?, 'link', ?, ?)`,
			p, parentOf(p), name, target)
		return err
	}()
	if err := finish(tx, err, "container.Link"); err != nil {
		return err
	}
	F.mu.Lock()
	F.links[p] = link{file: name, target: target}
	F.mu.Unlock()
	return nil
}

//LinkInfo returns the file and target of the link p. ok is false if p is
//not a link node of F itself.
func (F *File) LinkInfo(p string) (name, target string, ok bool) {
	F.mu.Lock()
	defer F.mu.Unlock()
	l, ok := F.links[Clean(p)]
	return l.file, l.target, ok
}

//LinkedFile returns the open, read-only file the link p points into.
func (F *File) LinkedFile(p string) (*File, error) {
	name, _, ok := F.LinkInfo(p)
	if !ok {
		return nil, werr.New(werr.FieldNotFound, F.path, "container.LinkedFile", "%s is not a link", Clean(p))
	}
	return F.foreignFile(name)
}

type treeNode struct {
	rel    string
	n      *node
	chunks []chunk
}

//gather collects the subtree at p, links followed, into memory.
func (F *File) gather(p, rel string, out []treeNode) ([]treeNode, error) {
	ff, n, err := F.node(p, "container.CopyTree")
	if err != nil {
		return nil, err
	}
	t := treeNode{rel: rel, n: n}
	if n.kind == KindDataset && n.nrows > 0 {
		t.chunks, err = chunksIn(ff.db, n.path, 0, n.nrows)
		if err != nil {
			return nil, err
		}
	}
	out = append(out, t)
	if n.kind != KindGroup {
		return out, nil
	}
	names, err := F.Children(p)
	if err != nil {
		return nil, err
	}
	for _, c := range names {
		out, err = F.gather(Join(p, c), Join(rel, c), out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

//CopyTree copies the subtree srcPath of src to dstPath in F. Links in src
//are followed, so the copy holds the data itself. dstPath must not exist.
func (F *File) CopyTree(src *File, srcPath, dstPath string) error {
	dstPath = Clean(dstPath)
	if err := F.writable(dstPath, "container.CopyTree"); err != nil {
		return err
	}
	tree, err := src.gather(srcPath, "", nil)
	if err != nil {
		return werr.Decorate(err, "container.CopyTree")
	}
	tx, err := F.db.Begin()
	if err != nil {
		return fmt.Errorf("container.CopyTree: %w", err)
	}
	err = func() error {
		if _, err := getNode(tx, dstPath); err == nil && dstPath != "" {
			return werr.New(werr.SchemaConflict, F.path, "container.CopyTree", "%s already exists", dstPath)
		}
		if err := mkdirs(tx, parentOf(dstPath)); err != nil {
			return err
		}
		for _, t := range tree {
			p := Join(dstPath, t.rel)
			shape, _ := json.Marshal([]int(t.n.shape))
			if p == "" {
				if _, err := tx.Exec(`UPDATE nodes SET attrs = ? WHERE path = ''`, t.n.attrs); err != nil {
					return err
				}
				continue
			}
			_, err := tx.Exec(`INSERT INTO nodes (path, parent, kind, dtype, shape, vlen, nrows, value, attrs)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(path) DO NOTHING`,
				p, parentOf(p), string(t.n.kind), string(t.n.dtype), string(shape), boolInt(t.n.vlen), t.n.nrows, t.n.value, t.n.attrs)
			if err != nil {
				return err
			}
			for seq, c := range t.chunks {
				if _, err := tx.Exec(`INSERT INTO chunks (path, seq, row_start, nrows, payload) VALUES (?, ?, ?, ?, ?)`,
					p, seq, c.start, c.n, c.payload); err != nil {
					return err
				}
			}
		}
		return nil
	}()
	return finish(tx, err, "container.CopyTree")
}

//Remove deletes the node p and everything under it. A link node is
//removed without touching the linked file.
func (F *File) Remove(p string) error {
	p = Clean(p)
	if p == "" {
		return werr.New(werr.ModeViolation, F.path, "container.Remove", "the root can't be removed, use Clear")
	}
	F.mu.Lock()
	_, isLink := F.links[p]
	F.mu.Unlock()
	if !isLink {
		if err := F.writable(p, "container.Remove"); err != nil {
			return err
		}
	} else if F.readOnly {
		return werr.New(werr.ModeViolation, F.path, "container.Remove", "file is open read-only")
	}
	tx, err := F.db.Begin()
	if err != nil {
		return fmt.Errorf("container.Remove: %w", err)
	}
	err = func() error {
		if _, err := getNode(tx, p); errors.Is(err, sql.ErrNoRows) {
			return werr.New(werr.FieldNotFound, F.path, "container.Remove", "no node at %s", p)
		} else if err != nil {
			return err
		}
		prefix := p + "/"
		for _, s := range []string{
			`DELETE FROM chunks WHERE path = ? OR substr(path, 1, length(?)) = ?`,
			`DELETE FROM nodes WHERE path = ? OR substr(path, 1, length(?)) = ?`,
		} {
			if _, err := tx.Exec(s, p, prefix, prefix); err != nil {
				return err
			}
		}
		return nil
	}()
	if err := finish(tx, err, "container.Remove"); err != nil {
		return err
	}
	if isLink {
		F.mu.Lock()
		delete(F.links, p)
		F.mu.Unlock()
	}
	return nil
}

//Clear deletes every node but the root, and the root attributes.
func (F *File) Clear() error {
	tx, _, err := F.begin("", "container.Clear")
	if err != nil {
		return err
	}
	err = func() error {
		for _, s := range []string{
			`DELETE FROM chunks`,
			`DELETE FROM nodes WHERE path != ''`,
			`UPDATE nodes SET attrs = '{}' WHERE path = ''`,
		} {
			if _, err := tx.Exec(s); err != nil {
				return err
			}
		}
		return nil
	}()
	if err := finish(tx, err, "container.Clear"); err != nil {
		return err
	}
	F.mu.Lock()
	F.links = make(map[string]link)
	F.mu.Unlock()
	return nil
}

//Empty is true if the root has no children.
func (F *File) Empty() (bool, error) {
	names, err := F.Children("")
	return len(names) == 0, err
}
