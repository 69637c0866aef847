package container

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

func newFile(t *testing.T, name string, opts ...Option) *File {
	t.Helper()
	f, err := Open(filepath.Join(t.TempDir(), name), false, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestChunkCodecs(Te *testing.T) {
	data := []float64{1.5, -2, 3, 1e4}
	for _, c := range []Codec{Raw, Zstd} {
		for _, dt := range []nd.Dtype{nd.Float64, nd.Float32, nd.Int64, nd.Int32, nd.Int16} {
			p, err := encodeChunk(c, dt, data)
			require.NoError(Te, err)
			assert.Equal(Te, byte(c), p[0])
			out, err := decodeChunk(p, dt, len(data))
			require.NoError(Te, err)
			for i, v := range data {
				assert.Equal(Te, dt.Convert(v), out[i], "codec %v dtype %s", c, dt)
			}
		}
	}
	rows := [][]float64{{1, 2, 3}, {}, {7}}
	p, err := encodeRagged(Zstd, nd.Int64, rows)
	require.NoError(Te, err)
	back, err := decodeRagged(p, nd.Int64, 3)
	require.NoError(Te, err)
	assert.Equal(Te, rows, back)
}

func TestAppendRead(Te *testing.T) {
	f := newFile(Te, "a.wst")
	require.NoError(Te, f.CreateDataset("runs/0/trajectories/0/positions", nd.Float32, nd.Shape{2, 3}, false))
	info, err := f.Info("runs/0/trajectories")
	require.NoError(Te, err)
	assert.Equal(Te, KindGroup, info.Kind)

	a := nd.New(nd.Float32, 3, 2, 3)
	for i := range a.Data() {
		a.Data()[i] = float64(i)
	}
	require.NoError(Te, f.Append("runs/0/trajectories/0/positions", a))
	b := nd.Full(nd.Float32, 9, 2, 2, 3)
	require.NoError(Te, f.Append("/runs/0/trajectories/0/positions/", b))

	info, err = f.Info("runs/0/trajectories/0/positions")
	require.NoError(Te, err)
	assert.Equal(Te, 5, info.NRows)
	assert.Equal(Te, nd.Shape{2, 3}, info.FeatureShape)

	all, err := f.ReadAll("runs/0/trajectories/0/positions")
	require.NoError(Te, err)
	want, err := nd.Concat(a, b)
	require.NoError(Te, err)
	assert.True(Te, all.Equal(want))

	mid, err := f.ReadRows("runs/0/trajectories/0/positions", 2, 4)
	require.NoError(Te, err)
	assert.Equal(Te, nd.Shape{2, 2, 3}, mid.Shape())
	assert.Equal(Te, a.Row(2), mid.Row(0))
	assert.Equal(Te, b.Row(0), mid.Row(1))

	fr, err := f.ReadFrames("runs/0/trajectories/0/positions", []int{4, 0})
	require.NoError(Te, err)
	assert.Equal(Te, b.Row(1), fr.Row(0))
	assert.Equal(Te, a.Row(0), fr.Row(1))

	bad := nd.New(nd.Float32, 1, 3, 3)
	err = f.Append("runs/0/trajectories/0/positions", bad)
	assert.True(Te, errors.Is(err, werr.ShapeMismatch))
	_, err = f.ReadAll("runs/0/trajectories/0/velocities")
	assert.True(Te, errors.Is(err, werr.FieldNotFound))
	_, err = f.ReadRows("runs/0/trajectories/0/positions", 3, 9)
	assert.True(Te, errors.Is(err, werr.ShapeMismatch))
}

func TestRagged(Te *testing.T) {
	f := newFile(Te, "r.wst", WithCodec(Raw))
	require.NoError(Te, f.CreateDataset("runs/0/resampling/target_idxs", nd.Int64, nil, true))
	require.NoError(Te, f.AppendRagged("runs/0/resampling/target_idxs", [][]float64{{0}, {1, 2}}))
	require.NoError(Te, f.AppendRagged("runs/0/resampling/target_idxs", [][]float64{{3, 4, 5}}))
	r, err := f.ReadRagged("runs/0/resampling/target_idxs", 1, -1)
	require.NoError(Te, err)
	assert.Equal(Te, [][]float64{{1, 2}, {3, 4, 5}}, r.Rows)
	err = f.Append("runs/0/resampling/target_idxs", nd.Scalars(nd.Int64, 1))
	assert.True(Te, errors.Is(err, werr.ShapeMismatch))
}

func TestValuesAttrsChildren(Te *testing.T) {
	f := newFile(Te, "v.wst")
	require.NoError(Te, f.SetValue("_settings/n_dims", 3))
	require.NoError(Te, f.SetValue("_settings/sparse_fields", []string{"velocities"}))
	require.NoError(Te, f.SetValue("_settings/sparse_fields", []string{"velocities", "forces"}))
	var n int
	require.NoError(Te, f.Value("_settings/n_dims", &n))
	assert.Equal(Te, 3, n)
	var sp []string
	require.NoError(Te, f.Value("_settings/sparse_fields", &sp))
	assert.Equal(Te, []string{"velocities", "forces"}, sp)

	for _, r := range []string{"10", "2", "1", "x"} {
		require.NoError(Te, f.CreateGroup(Join("runs", r)))
	}
	names, err := f.Children("runs")
	require.NoError(Te, err)
	assert.Equal(Te, []string{"1", "2", "10", "x"}, names)

	require.NoError(Te, f.SetAttrs("", map[string]any{"archive_id": "abc"}))
	require.NoError(Te, f.SetAttrs("", map[string]any{"creator": "test"}))
	attrs, err := f.Attrs("")
	require.NoError(Te, err)
	assert.Equal(Te, "abc", attrs["archive_id"])
	assert.Equal(Te, "test", attrs["creator"])

	err = f.CreateDataset("_settings/n_dims", nd.Int64, nil, false)
	assert.True(Te, errors.Is(err, werr.SchemaConflict))
	empty, err := f.Empty()
	require.NoError(Te, err)
	assert.False(Te, empty)
	require.NoError(Te, f.Clear())
	empty, err = f.Empty()
	require.NoError(Te, err)
	assert.True(Te, empty)
}

func TestReadOnlyAndLock(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "lock.wst")
	f, err := Open(name, false)
	require.NoError(Te, err)
	require.NoError(Te, f.SetValue("topology", "{}"))
	_, err = Open(name, false)
	assert.True(Te, errors.Is(err, werr.Locked))

	ro, err := Open(name, true)
	require.NoError(Te, err)
	var s string
	require.NoError(Te, ro.Value("topology", &s))
	assert.Equal(Te, "{}", s)
	err = ro.SetValue("topology", "x")
	assert.True(Te, errors.Is(err, werr.ModeViolation))
	require.NoError(Te, ro.Close())

	require.NoError(Te, f.Close())
	require.NoError(Te, f.Close())
	_, err = f.Info("topology")
	assert.True(Te, errors.Is(err, werr.Closed))
	f2, err := Open(name, false)
	require.NoError(Te, err)
	f2.Close()

	_, err = Open(filepath.Join(Te.TempDir(), "missing.wst"), true)
	assert.True(Te, errors.Is(err, werr.ModeViolation))
}

func TestLinkAndCopy(Te *testing.T) {
	dir := Te.TempDir()
	src, err := Open(filepath.Join(dir, "src.wst"), false)
	require.NoError(Te, err)
	defer src.Close()
	require.NoError(Te, src.CreateDataset("runs/0/trajectories/0/weights", nd.Float64, nd.Shape{1}, false))
	w := nd.Full(nd.Float64, 0.25, 4, 1)
	require.NoError(Te, src.Append("runs/0/trajectories/0/weights", w))
	require.NoError(Te, src.SetValue("runs/0/decision/CLONE", 2))
	require.NoError(Te, src.SetAttrs("runs/0", map[string]any{"note": "first"}))

	dst, err := Open(filepath.Join(dir, "dst.wst"), false)
	require.NoError(Te, err)
	defer dst.Close()
	require.NoError(Te, dst.Link("runs/0", "src.wst", "runs/0"))
	file, target, ok := dst.LinkInfo("runs/0")
	assert.True(Te, ok)
	assert.Equal(Te, "src.wst", file)
	assert.Equal(Te, "runs/0", target)

	got, err := dst.ReadAll("runs/0/trajectories/0/weights")
	require.NoError(Te, err)
	assert.True(Te, got.Equal(w))
	names, err := dst.Children("runs/0")
	require.NoError(Te, err)
	assert.Equal(Te, []string{"decision", "trajectories"}, names)
	err = dst.Append("runs/0/trajectories/0/weights", w)
	assert.True(Te, errors.Is(err, werr.ModeViolation))
	assert.Error(Te, dst.Link("runs/1", "src.wst", "runs/7"))

	//copying through the link materializes the data
	require.NoError(Te, dst.CopyTree(dst, "runs/0", "runs/1"))
	_, _, ok = dst.LinkInfo("runs/1")
	assert.False(Te, ok)
	got, err = dst.ReadAll("runs/1/trajectories/0/weights")
	require.NoError(Te, err)
	assert.True(Te, got.Equal(w))
	var code int
	require.NoError(Te, dst.Value("runs/1/decision/CLONE", &code))
	assert.Equal(Te, 2, code)
	attrs, err := dst.Attrs("runs/1")
	require.NoError(Te, err)
	assert.Equal(Te, "first", attrs["note"])
	require.NoError(Te, dst.Append("runs/1/trajectories/0/weights", w))
	err = dst.CopyTree(src, "runs/0", "runs/1")
	assert.True(Te, errors.Is(err, werr.SchemaConflict))
}

func TestRemove(Te *testing.T) {
	f := newFile(Te, "rm.wst")
	require.NoError(Te, f.CreateDataset("a/b_c/x", nd.Float64, nd.Shape{2}, false))
	a, _ := nd.FromData(nd.Float64, []float64{1, 2}, 1, 2)
	require.NoError(Te, f.Append("a/b_c/x", a))
	require.NoError(Te, f.CreateGroup("a/bxc"))
	require.NoError(Te, f.Remove("a/b_c"))
	ok, err := f.Exists("a/b_c/x")
	require.NoError(Te, err)
	assert.False(Te, ok)
	//the underscore is not a wildcard
	ok, err = f.Exists("a/bxc")
	require.NoError(Te, err)
	assert.True(Te, ok)
	assert.True(Te, errors.Is(f.Remove("a/b_c"), werr.FieldNotFound))
	assert.True(Te, errors.Is(f.Remove(""), werr.ModeViolation))
	//the path can be reused
	require.NoError(Te, f.CreateDataset("a/b_c/x", nd.Int64, nd.Shape{}, false))
	info, err := f.Info("a/b_c/x")
	require.NoError(Te, err)
	assert.Equal(Te, 0, info.NRows)
}
