package gc

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/joshuapare/gcext/gc/tracker"
	"github.com/joshuapare/gcext/internal/extmem"
)

// page is one pool page carved into equal cells.
type page struct {
	class    int
	cellSize uintptr
	base     uintptr
	mem      []byte
	objs     []*Object // by cell; nil = free
	free     []int32   // free cell stack
	live     int
}

// pool holds the pages of one size class.
type pool struct {
	mu       sync.Mutex
	class    int
	cellSize uintptr
	pages    []*page
	avail    []*page // pages with at least one free cell
}

// poolHeap owns every size-class pool plus the page index used to classify
// interior addresses.
type poolHeap struct {
	classes  *sizeClassTable
	pools    []*pool
	pageSize uintptr
	mem      extmem.Allocator

	// pageRanges maps any address inside a page to the page's base;
	// pages maps the base to the page.
	pageRanges *tracker.Tracker
	pages      *xsync.MapOf[uintptr, *page]
}

func newPoolHeap(opts *Options) *poolHeap {
	h := &poolHeap{
		classes:    newSizeClassTable(*opts.SizeClasses),
		pageSize:   opts.PageSize,
		mem:        opts.PageMemory,
		pageRanges: tracker.New(),
		pages:      xsync.NewMapOf[uintptr, *page](),
	}
	for i, size := range h.classes.sizes {
		h.pools = append(h.pools, &pool{class: i, cellSize: size})
	}
	return h
}

// alloc carves a cell of class for obj.
func (h *poolHeap) alloc(class int, obj *Object) error {
	p := h.pools[class]
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.avail) == 0 {
		pg, err := h.newPage(p)
		if err != nil {
			return err
		}
		p.pages = append(p.pages, pg)
		p.avail = append(p.avail, pg)
	}
	pg := p.avail[len(p.avail)-1]
	cell := pg.free[len(pg.free)-1]
	pg.free = pg.free[:len(pg.free)-1]
	if len(pg.free) == 0 {
		p.avail = p.avail[:len(p.avail)-1]
	}

	off := uintptr(cell) * pg.cellSize
	mem := pg.mem[off : off+pg.cellSize : off+pg.cellSize]
	clear(mem)
	obj.mem = mem[:obj.size]
	obj.addr = pg.base + off
	obj.page = pg
	obj.cell = cell
	pg.objs[cell] = obj
	pg.live++
	return nil
}

func (h *poolHeap) newPage(p *pool) (*page, error) {
	mem, err := h.mem.Alloc(h.pageSize)
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "pool page for %d-byte cells: %v", p.cellSize, err)
	}
	n := int(h.pageSize / p.cellSize)
	pg := &page{
		class:    p.class,
		cellSize: p.cellSize,
		base:     uintptr(unsafe.Pointer(unsafe.SliceData(mem))),
		mem:      mem,
		objs:     make([]*Object, n),
		free:     make([]int32, 0, n),
	}
	// Hand out low cells first.
	for i := n - 1; i >= 0; i-- {
		pg.free = append(pg.free, int32(i))
	}
	if _, err := h.pageRanges.Insert(pg.base, uintptr(n)*p.cellSize); err != nil {
		_ = h.mem.Free(mem)
		return nil, err
	}
	h.pages.Store(pg.base, pg)
	return pg, nil
}

// release returns obj's cell to its page. Called with the world stopped.
func (h *poolHeap) release(obj *Object) {
	pg := obj.page
	p := h.pools[pg.class]
	p.mu.Lock()
	defer p.mu.Unlock()
	pg.objs[obj.cell] = nil
	pg.free = append(pg.free, obj.cell)
	pg.live--
	if len(pg.free) == 1 {
		p.avail = append(p.avail, pg)
	}
}

// lookup resolves addr to the pool object containing it. With exact set,
// only the cell base address matches.
func (h *poolHeap) lookup(addr uintptr, exact bool) (*Object, bool) {
	rec, ok := h.pageRanges.Find(addr)
	if !ok {
		return nil, false
	}
	pg, ok := h.pages.Load(rec.Address)
	if !ok {
		return nil, false
	}
	off := addr - pg.base
	cell := off / pg.cellSize
	if exact && off%pg.cellSize != 0 {
		return nil, false
	}
	p := h.pools[pg.class]
	p.mu.Lock()
	obj := pg.objs[cell]
	p.mu.Unlock()
	if obj == nil {
		return nil, false
	}
	if !exact && addr >= obj.addr+max(obj.size, 1) {
		// Slack between the payload end and the next cell.
		return nil, false
	}
	return obj, true
}

// contains reports whether addr lies inside any pool page.
func (h *poolHeap) contains(addr uintptr) bool {
	_, ok := h.pageRanges.Find(addr)
	return ok
}

// forEach calls fn for every allocated pool object. World must be stopped.
func (h *poolHeap) forEach(fn func(*Object)) {
	for _, p := range h.pools {
		for _, pg := range p.pages {
			for _, obj := range pg.objs {
				if obj != nil {
					fn(obj)
				}
			}
		}
	}
}

// releaseEmptyPages unmaps pages without live cells, keeping one page per
// class. It returns the number of pages released.
func (h *poolHeap) releaseEmptyPages() (int, error) {
	released := 0
	var errs error
	for _, p := range h.pools {
		p.mu.Lock()
		keep := p.pages[:0]
		kept := 0
		for _, pg := range p.pages {
			if pg.live > 0 || kept == 0 {
				keep = append(keep, pg)
				if pg.live == 0 {
					kept++
				}
				continue
			}
			h.pageRanges.Delete(pg.base)
			h.pages.Delete(pg.base)
			if err := h.mem.Free(pg.mem); err != nil {
				errs = errors.CombineErrors(errs, err)
			}
			released++
		}
		clear(p.pages[len(keep):])
		p.pages = keep

		p.avail = p.avail[:0]
		for _, pg := range p.pages {
			if len(pg.free) > 0 {
				p.avail = append(p.avail, pg)
			}
		}
		p.mu.Unlock()
	}
	return released, errs
}

// close unmaps every page.
func (h *poolHeap) close() error {
	var errs error
	for _, p := range h.pools {
		for _, pg := range p.pages {
			if err := h.mem.Free(pg.mem); err != nil {
				errs = errors.CombineErrors(errs, err)
			}
		}
		p.pages, p.avail = nil, nil
	}
	h.pageRanges.Reset()
	h.pages.Clear()
	return errs
}

// usage reports page count and bytes held by live cells.
func (h *poolHeap) usage() (pages int, live uintptr) {
	for _, p := range h.pools {
		p.mu.Lock()
		pages += len(p.pages)
		for _, pg := range p.pages {
			live += uintptr(pg.live) * pg.cellSize
		}
		p.mu.Unlock()
	}
	return pages, live
}
