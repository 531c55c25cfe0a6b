// Package win implements the process-wide window registry from
// spec.md §4.C5: a bijection between X-ids and owned Win records, shape
// and background ownership, per-window callback lists, and lifecycle
// management across an asynchronous server.
//
// Following the re-architecture guidance in spec.md §9, records live in
// an arena and are addressed by a generation-checked WinId handle rather
// than by raw pointer; callers capture WinId in callbacks, not *Win.
package win

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/xconn"
	"github.com/burzumishi/e16go/internal/xerr"
	"github.com/burzumishi/e16go/internal/xlist"
)

// WinId is a stable handle to a Win record. The zero value is never a
// valid handle: index 0 of the arena is reserved and unallocated.
type WinId struct {
	idx uint32
	gen uint32
}

// Valid reports whether id could possibly refer to a live record (it
// does not check liveness against the registry; use Registry.Get).
func (id WinId) Valid() bool { return id.idx != 0 }

// ShapeKind distinguishes an unshaped window from one with an explicit
// bounding-rectangle list (spec.md §3).
type ShapeKind int

const (
	Unshaped ShapeKind = iota
	Shaped
)

// ShapeState is a Win's current bounding-shape state.
type ShapeState struct {
	Kind  ShapeKind
	Rects []xproto.Rectangle // window-relative; Kind == Shaped with no rects means fully hidden
}

// BGOwnership tracks who owns a Win's background pixmap (spec.md §3).
type BGOwnership int

const (
	BGUnset BGOwnership = iota
	BGBorrowed
	BGOwned
	BGInvalidated
)

// Background is a Win's background pixmap state.
type Background struct {
	Pixmap    xproto.Pixmap
	Ownership BGOwnership
	Pixel     uint32
}

// Geometry mirrors the server's last-known geometry for a Win.
type Geometry struct {
	X, Y          int16
	W, H          uint16
	BorderWidth   uint16
}

// CallbackFunc is the per-window event callback (spec.md §4.C5).
type CallbackFunc func(w *Win, ev any, prm any)

type callbackEntry struct {
	fn  CallbackFunc
	prm any
}

// Win is the central entity: one record per X drawable the manager
// touches.
type Win struct {
	id     WinId
	Xid    xproto.Window
	Parent WinId

	Geom Geometry

	Depth    byte
	Visual   xproto.Visualid
	Colormap xproto.Colormap
	ARGB     bool
	Mapped   bool

	Shape ShapeState
	BG    Background

	// EventMask is the shadow copy of the window's selected event mask,
	// kept current even when XInput2 selections (spec.md §4.C7) make the
	// server-side mask opaque to ordinary core-protocol queries.
	EventMask uint32

	callbacks *xlist.List[callbackEntry]
	children  map[WinId]struct{}

	inUse bool
	doDel bool

	ownsXid bool // true if this record's destroy should XDestroyWindow
}

// ID returns the handle addressing this record.
func (w *Win) ID() WinId { return w.id }

// HasCallbacks reports whether any callback is currently registered.
func (w *Win) HasCallbacks() bool { return w.callbacks.Len() > 0 }

type argbKey struct{ depth byte }

type argbVisual struct {
	Visual   xproto.Visualid
	Colormap xproto.Colormap
}

// Registry owns every Win record for one X connection.
type Registry struct {
	conn *xconn.Conn

	arena []*Win
	free  []uint32

	byXid map[xproto.Window]WinId

	// argbCache memoises the 32-bit TrueColor visual and its colormap
	// for this registry, under a single depth-32 key (spec.md §9 design
	// notes).
	argbCache *lru.Cache
}

// NewRegistry creates an empty registry bound to conn.
func NewRegistry(conn *xconn.Conn) *Registry {
	cache, _ := lru.New(4)
	r := &Registry{
		conn:      conn,
		arena:     make([]*Win, 1, 64), // index 0 reserved
		byXid:     make(map[xproto.Window]WinId, 64),
		argbCache: cache,
	}
	return r
}

// Lookup returns the handle for an already-registered X-id.
func (r *Registry) Lookup(xid xproto.Window) (WinId, bool) {
	id, ok := r.byXid[xid]
	return id, ok
}

// Get dereferences a handle, failing if the slot was freed or recycled
// (generation mismatch) since the handle was captured.
func (r *Registry) Get(id WinId) (*Win, bool) {
	if id.idx == 0 || int(id.idx) >= len(r.arena) {
		return nil, false
	}
	w := r.arena[id.idx]
	if w == nil || w.id.gen != id.gen {
		return nil, false
	}
	return w, true
}

func (r *Registry) alloc(xid xproto.Window) *Win {
	var idx uint32
	var gen uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
		gen = r.arena[idx].id.gen + 1
	} else {
		idx = uint32(len(r.arena))
		r.arena = append(r.arena, nil)
		gen = 1
	}
	w := &Win{
		id:        WinId{idx: idx, gen: gen},
		Xid:       xid,
		callbacks: xlist.New[callbackEntry](),
		children:  make(map[WinId]struct{}),
	}
	r.arena[idx] = w
	r.byXid[xid] = w.id
	return w
}

func (r *Registry) free_(id WinId) {
	w, ok := r.Get(id)
	if !ok {
		return
	}
	delete(r.byXid, w.Xid)
	r.arena[id.idx] = nil
	r.free = append(r.free, id.idx)
}

// Register wraps an existing X-id. If already registered it returns the
// existing record (idempotent). If attrs is nil, geometry is fetched
// with a round trip; a failure means the window is already gone.
func (r *Registry) Register(xid xproto.Window, attrs *xproto.GetGeometryReply) (WinId, error) {
	if id, ok := r.byXid[xid]; ok {
		return id, nil
	}

	geom := attrs
	if geom == nil {
		reply, err := xproto.GetGeometry(r.conn.X(), xproto.Drawable(xid)).Reply()
		if err != nil || reply == nil {
			return WinId{}, xerr.New(xerr.Gone, "win.Register", err)
		}
		geom = reply
	}

	w := r.alloc(xid)
	w.Geom = Geometry{X: geom.X, Y: geom.Y, W: geom.Width, H: geom.Height, BorderWidth: geom.BorderWidth}
	w.Depth = geom.Depth
	return w.id, nil
}

// Unregister drops the record without touching the server, refusing if
// callbacks are still registered (the Win "MUST NOT be silently freed",
// spec.md §3).
func (r *Registry) Unregister(id WinId) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.Unregister", nil)
	}
	if w.HasCallbacks() {
		return xerr.New(xerr.Protocol, "win.Unregister: callbacks still registered", nil)
	}
	if parent, ok := r.Get(w.Parent); ok {
		delete(parent.children, id)
	}
	r.free_(id)
	return nil
}

// Create makes a child window of parent, inheriting its visual and
// colormap, and registers it.
func (r *Registry) Create(parent WinId, x, y int16, width, height uint16, saveUnder bool) (WinId, error) {
	pw, ok := r.Get(parent)
	if !ok {
		return WinId{}, xerr.New(xerr.Gone, "win.Create", nil)
	}

	xid, err := xproto.NewWindowId(r.conn.X())
	if err != nil {
		return WinId{}, xerr.New(xerr.OutOfMemory, "win.Create", err)
	}

	valueMask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect)
	values := []uint32{0, 0}
	if saveUnder {
		valueMask |= xproto.CwSaveUnder
		values = append(values, 1)
	}

	screen := r.conn.Screen()
	err = xproto.CreateWindowChecked(
		r.conn.X(), screen.RootDepth, xid, pw.Xid,
		x, y, width, height, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		valueMask, values,
	).Check()
	if err != nil {
		return WinId{}, xerr.New(xerr.Protocol, "win.Create", err)
	}

	id, err := r.Register(xid, &xproto.GetGeometryReply{
		X: x, Y: y, Width: width, Height: height, Depth: screen.RootDepth,
	})
	if err != nil {
		return WinId{}, err
	}
	w, _ := r.Get(id)
	w.Parent = parent
	w.Visual = screen.RootVisual
	w.Colormap = screen.DefaultColormap
	w.ownsXid = true
	pw.children[id] = struct{}{}
	return id, nil
}

// CreateARGB creates a 32-bit TrueColor window with an alpha channel,
// memoising the ARGB visual/colormap pair process-wide on first use
// (spec.md §9 design notes).
func (r *Registry) CreateARGB(parent WinId, x, y int16, width, height uint16) (WinId, error) {
	pw, ok := r.Get(parent)
	if !ok {
		return WinId{}, xerr.New(xerr.Gone, "win.CreateARGB", nil)
	}

	av, err := r.argbVisual(pw.Depth)
	if err != nil {
		return WinId{}, err
	}

	xid, err := xproto.NewWindowId(r.conn.X())
	if err != nil {
		return WinId{}, xerr.New(xerr.OutOfMemory, "win.CreateARGB", err)
	}

	valueMask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwColormap | xproto.CwOverrideRedirect)
	values := []uint32{0, 0, uint32(av.Colormap), 0}

	err = xproto.CreateWindowChecked(
		r.conn.X(), 32, xid, pw.Xid,
		x, y, width, height, 0,
		xproto.WindowClassInputOutput, av.Visual,
		valueMask, values,
	).Check()
	if err != nil {
		return WinId{}, xerr.New(xerr.Protocol, "win.CreateARGB", err)
	}

	id, err := r.Register(xid, &xproto.GetGeometryReply{X: x, Y: y, Width: width, Height: height, Depth: 32})
	if err != nil {
		return WinId{}, err
	}
	w, _ := r.Get(id)
	w.Parent = parent
	w.Visual = av.Visual
	w.Colormap = av.Colormap
	w.ARGB = true
	w.ownsXid = true
	pw.children[id] = struct{}{}
	return id, nil
}

// argbVisual finds (and caches) a 32-bit TrueColor visual with its
// colormap for the given screen depth. The core protocol's VisualType
// doesn't expose an alpha mask directly (that needs the Render
// extension's PictFormats); a depth-32 TrueColor visual is used as the
// conventional stand-in, as most compositing window managers do.
func (r *Registry) argbVisual(_ byte) (argbVisual, error) {
	if v, ok := r.argbCache.Get(argbKey{depth: 32}); ok {
		return v.(argbVisual), nil
	}

	screen := r.conn.Screen()
	for _, d := range screen.AllowedDepths {
		if d.Depth != 32 {
			continue
		}
		for _, vt := range d.Visuals {
			if vt.Class != xproto.VisualClassTrueColor {
				continue
			}
			cmid, err := xproto.NewColormapId(r.conn.X())
			if err != nil {
				return argbVisual{}, xerr.New(xerr.OutOfMemory, "win.argbVisual", err)
			}
			if err := xproto.CreateColormapChecked(r.conn.X(), xproto.ColormapAllocNone, cmid, screen.Root, vt.VisualId).Check(); err != nil {
				return argbVisual{}, xerr.New(xerr.Protocol, "win.argbVisual", err)
			}
			av := argbVisual{Visual: vt.VisualId, Colormap: cmid}
			r.argbCache.Add(argbKey{depth: 32}, av)
			return av, nil
		}
	}
	return argbVisual{}, xerr.New(xerr.Protocol, "win.argbVisual: no 32-bit TrueColor visual", nil)
}

// Destroy issues a server destroy (if this record owns the X-id), then
// removes every descendant Win record from the process-local tree,
// regardless of whether the descendants own their own X-ids (the
// server's own window-destroy cascade handles those).
func (r *Registry) Destroy(id WinId) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.Destroy", nil)
	}

	if w.ownsXid {
		if err := xproto.DestroyWindowChecked(r.conn.X(), w.Xid).Check(); err != nil {
			if !isGoneErr(err) {
				return xerr.New(xerr.Protocol, "win.Destroy", err)
			}
		}
	}

	r.destroyTree(id)
	return nil
}

func (r *Registry) destroyTree(id WinId) {
	w, ok := r.Get(id)
	if !ok {
		return
	}
	for child := range w.children {
		r.destroyTree(child)
	}
	if parent, ok := r.Get(w.Parent); ok {
		delete(parent.children, id)
	}
	r.free_(id)
}

func isGoneErr(err error) bool {
	_, ok := err.(xproto.WindowError)
	return ok
}

// CallbackRegister appends a (fn, prm) pair to w's callback list.
func (r *Registry) CallbackRegister(id WinId, fn CallbackFunc, prm any) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.CallbackRegister", nil)
	}
	w.callbacks.PushBack(callbackEntry{fn: fn, prm: prm})
	return nil
}

// CallbackUnregister removes the first matching (fn, prm) pair.
// Function identity is compared by code pointer (functions are not
// comparable in Go); prm is compared with ==, so it must hold a
// comparable value.
func (r *Registry) CallbackUnregister(id WinId, fn CallbackFunc, prm any) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.CallbackUnregister", nil)
	}
	target := reflect.ValueOf(fn).Pointer()
	for n := w.callbacks.Front(); n != nil; n = n.Next() {
		if reflect.ValueOf(n.Value.fn).Pointer() == target && safeEqual(n.Value.prm, prm) {
			w.callbacks.Remove(n)
			return nil
		}
	}
	return nil
}

func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// CallbacksProcess dispatches ev to every registered callback of w,
// marking w in-use for the duration so a destroy arriving mid-dispatch
// is deferred until this call returns (spec.md §5).
func (r *Registry) CallbacksProcess(id WinId, ev any) {
	w, ok := r.Get(id)
	if !ok {
		return
	}
	w.inUse = true
	for n := w.callbacks.Front(); n != nil; n = n.Next() {
		cb := n.Value
		cb.fn(w, ev, cb.prm)
	}
	w.inUse = false
	if w.doDel {
		w.doDel = false
		r.Destroy(id)
	}
}

// RequestDestroy marks the record for deletion if it is currently
// in-use by a callback, otherwise destroys it immediately.
func (r *Registry) RequestDestroy(id WinId) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.RequestDestroy", nil)
	}
	if w.inUse {
		w.doDel = true
		return nil
	}
	return r.Destroy(id)
}

// SetBackgroundPixmap installs pm as w's background. If kept is true the
// registry takes ownership (frees it later); otherwise it is a borrowed
// reference the caller still owns (spec.md P3).
func (r *Registry) SetBackgroundPixmap(id WinId, pm xproto.Pixmap, kept bool) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.SetBackgroundPixmap", nil)
	}
	r.freeOwnedBG(w)
	if kept {
		w.BG = Background{Pixmap: pm, Ownership: BGOwned}
	} else {
		w.BG = Background{Pixmap: pm, Ownership: BGBorrowed}
	}
	return xproto.ChangeWindowAttributesChecked(r.conn.X(), w.Xid, xproto.CwBackPixmap, []uint32{uint32(pm)}).Check()
}

// GetOrCreateBG lazily allocates an owned pixmap sized to the current
// geometry, reallocating if a previous one was invalidated by a resize.
func (r *Registry) GetOrCreateBG(id WinId) (xproto.Pixmap, error) {
	w, ok := r.Get(id)
	if !ok {
		return 0, xerr.New(xerr.Gone, "win.GetOrCreateBG", nil)
	}
	if w.BG.Ownership == BGOwned && w.BG.Pixmap != 0 {
		return w.BG.Pixmap, nil
	}
	if w.BG.Ownership == BGInvalidated {
		r.freeOwnedBG(w)
	}

	pmid, err := xproto.NewPixmapId(r.conn.X())
	if err != nil {
		return 0, xerr.New(xerr.OutOfMemory, "win.GetOrCreateBG", err)
	}
	if err := xproto.CreatePixmapChecked(r.conn.X(), w.Depth, pmid, xproto.Drawable(w.Xid), w.Geom.W, w.Geom.H).Check(); err != nil {
		return 0, xerr.New(xerr.Protocol, "win.GetOrCreateBG", err)
	}
	w.BG = Background{Pixmap: pmid, Ownership: BGOwned}
	return pmid, nil
}

func (r *Registry) freeOwnedBG(w *Win) {
	if w.BG.Ownership == BGOwned && w.BG.Pixmap != 0 {
		xproto.FreePixmap(r.conn.X(), w.BG.Pixmap)
	}
	w.BG = Background{}
}

// Move updates a Win's position, short-circuiting when unchanged.
func (r *Registry) Move(id WinId, x, y int16) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.Move", nil)
	}
	if w.Geom.X == x && w.Geom.Y == y {
		return nil
	}
	w.Geom.X, w.Geom.Y = x, y
	return xproto.ConfigureWindowChecked(r.conn.X(), w.Xid,
		xproto.ConfigWindowX|xproto.ConfigWindowY,
		[]uint32{uint32(int32(x)), uint32(int32(y))}).Check()
}

// Resize updates a Win's size, short-circuiting when unchanged and
// invalidating any owned background pixmap (spec.md §3, §5: invalidation
// is lazy, freed on next GetOrCreateBG).
func (r *Registry) Resize(id WinId, width, height uint16) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.Resize", nil)
	}
	if w.Geom.W == width && w.Geom.H == height {
		return nil
	}
	w.Geom.W, w.Geom.H = width, height
	if w.BG.Ownership == BGOwned {
		w.BG.Ownership = BGInvalidated
	}
	return xproto.ConfigureWindowChecked(r.conn.X(), w.Xid,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(width), uint32(height)}).Check()
}

// MoveResize updates position and size together.
func (r *Registry) MoveResize(id WinId, x, y int16, width, height uint16) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.MoveResize", nil)
	}
	if w.Geom.X == x && w.Geom.Y == y && w.Geom.W == width && w.Geom.H == height {
		return nil
	}
	resized := w.Geom.W != width || w.Geom.H != height
	w.Geom = Geometry{X: x, Y: y, W: width, H: height, BorderWidth: w.Geom.BorderWidth}
	if resized && w.BG.Ownership == BGOwned {
		w.BG.Ownership = BGInvalidated
	}
	return xproto.ConfigureWindowChecked(r.conn.X(), w.Xid,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(int32(x)), uint32(int32(y)), uint32(width), uint32(height)}).Check()
}

// Sync forces a round-trip XGetGeometry to reconcile the local mirror
// with the server's view.
func (r *Registry) Sync(id WinId) error {
	w, ok := r.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "win.Sync", nil)
	}
	reply, err := xproto.GetGeometry(r.conn.X(), xproto.Drawable(w.Xid)).Reply()
	if err != nil || reply == nil {
		return xerr.New(xerr.Gone, "win.Sync", err)
	}
	w.Geom = Geometry{X: reply.X, Y: reply.Y, W: reply.Width, H: reply.Height, BorderWidth: reply.BorderWidth}
	return nil
}

// Children returns the handles of the direct children of w, in no
// particular order (shape propagation sorts/filters as needed).
func (w *Win) Children() []WinId {
	out := make([]WinId, 0, len(w.children))
	for id := range w.children {
		out = append(out, id)
	}
	return out
}
