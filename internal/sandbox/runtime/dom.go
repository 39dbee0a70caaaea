package runtime

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type docKey struct{}
type winKey struct{}

var (
	docTarget = docKey{}
	winTarget = winKey{}
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

type listenerKey struct {
	target any
	typ    string
}

type listener struct {
	value   goja.Value
	fn      goja.Callable
	this    goja.Value
	once    bool
	removed bool
}

// domBinding exposes the parsed tree to the VM. Wrappers are created lazily
// and cached, so the same node always maps to the same object.
type domBinding struct {
	d        *Document
	vm       *goja.Runtime
	root     *html.Node
	proto    *goja.Object
	document *goja.Object

	wrappers  map[*html.Node]*goja.Object
	nodes     map[*goja.Object]*html.Node
	listeners map[listenerKey][]*listener

	// interrupted is set when a listener hit the script deadline.
	interrupted bool
}

func newDOMBinding(d *Document) *domBinding {
	return &domBinding{
		d:         d,
		vm:        d.vm,
		root:      d.root,
		wrappers:  make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		listeners: make(map[listenerKey][]*listener),
	}
}

func (b *domBinding) install() error {
	b.proto = b.vm.NewObject()
	if err := b.installNodeProto(); err != nil {
		return err
	}
	b.document = b.vm.NewObject()
	if err := b.installDocument(); err != nil {
		return err
	}

	global := b.vm.GlobalObject()
	if err := global.Set("document", b.document); err != nil {
		return err
	}
	for name, fn := range b.targetMethods(winTarget) {
		if err := global.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// scripts returns the classic script elements in document order.
func (b *domBinding) scripts() []*html.Node {
	var out []*html.Node
	for _, n := range htmlquery.Find(b.root, "//script") {
		typ, _ := attr(n, "type")
		switch strings.ToLower(strings.TrimSpace(typ)) {
		case "", "text/javascript", "application/javascript", "text/ecmascript":
			out = append(out, n)
		}
	}
	return out
}

func (b *domBinding) title() string {
	n := htmlquery.FindOne(b.root, "//title")
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(textContent(n)), " ")
}

// wrap returns the JS object for n, creating it on first use.
func (b *domBinding) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if n.Type == html.DocumentNode {
		return b.document
	}
	if obj, ok := b.wrappers[n]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	_ = obj.SetPrototype(b.proto)
	b.wrappers[n] = obj
	b.nodes[obj] = n
	return obj
}

func (b *domBinding) wrapAll(nodes []*html.Node) goja.Value {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = b.wrap(n)
	}
	return b.vm.NewArray(items...)
}

// node resolves a JS value back to its node; document maps to the root.
func (b *domBinding) node(v goja.Value) (*html.Node, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	if obj == b.document {
		return b.root, true
	}
	n, ok := b.nodes[obj]
	return n, ok
}

func (b *domBinding) this(call goja.FunctionCall) *html.Node {
	n, ok := b.node(call.This)
	if !ok {
		panic(b.vm.NewTypeError("Illegal invocation"))
	}
	return n
}

func (b *domBinding) throw(ctor, name, msg string) {
	obj, err := b.vm.New(b.vm.Get(ctor), b.vm.ToValue(msg))
	if err != nil {
		panic(b.vm.NewTypeError(msg))
	}
	if name != "" {
		_ = obj.Set("name", name)
	}
	panic(obj)
}

// accessor defines a getter and optional setter on the node prototype.
func (b *domBinding) accessor(name string, get func(*html.Node) goja.Value, set func(*html.Node, goja.Value)) error {
	getter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(b.this(call))
	})
	var setter goja.Value
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(b.this(call), call.Argument(0))
			return goja.Undefined()
		})
	}
	return b.proto.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (b *domBinding) installNodeProto() error {
	vm := b.vm
	str := func(s string) goja.Value { return vm.ToValue(s) }

	attrAccessor := func(name, key string) error {
		return b.accessor(name,
			func(n *html.Node) goja.Value { v, _ := attr(n, key); return str(v) },
			func(n *html.Node, v goja.Value) { setAttr(n, key, v.String()) })
	}
	boolAccessor := func(name string) error {
		return b.accessor(name,
			func(n *html.Node) goja.Value { _, ok := attr(n, name); return vm.ToValue(ok) },
			func(n *html.Node, v goja.Value) {
				if v.ToBoolean() {
					setAttr(n, name, "")
				} else {
					removeAttr(n, name)
				}
			})
	}

	accessors := []error{
		attrAccessor("id", "id"),
		attrAccessor("className", "class"),
		attrAccessor("value", "value"),
		boolAccessor("hidden"),
		boolAccessor("disabled"),
		boolAccessor("checked"),
		b.accessor("nodeType", func(n *html.Node) goja.Value { return vm.ToValue(nodeType(n)) }, nil),
		b.accessor("nodeName", func(n *html.Node) goja.Value { return str(nodeName(n)) }, nil),
		b.accessor("tagName", func(n *html.Node) goja.Value {
			if n.Type != html.ElementNode {
				return goja.Undefined()
			}
			return str(strings.ToUpper(n.Data))
		}, nil),
		b.accessor("textContent",
			func(n *html.Node) goja.Value { return str(textContent(n)) },
			func(n *html.Node, v goja.Value) { setTextContent(n, v.String()) }),
		b.accessor("innerHTML",
			func(n *html.Node) goja.Value { return str(innerHTML(n)) },
			b.setInnerHTML),
		b.accessor("outerHTML", func(n *html.Node) goja.Value { return str(render(n)) }, nil),
		b.accessor("parentNode", func(n *html.Node) goja.Value { return b.wrap(n.Parent) }, nil),
		b.accessor("parentElement", func(n *html.Node) goja.Value {
			if n.Parent == nil || n.Parent.Type != html.ElementNode {
				return goja.Null()
			}
			return b.wrap(n.Parent)
		}, nil),
		b.accessor("children", func(n *html.Node) goja.Value { return b.wrapAll(elementChildren(n)) }, nil),
		b.accessor("childNodes", func(n *html.Node) goja.Value {
			var out []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.DoctypeNode {
					out = append(out, c)
				}
			}
			return b.wrapAll(out)
		}, nil),
		b.accessor("firstElementChild", func(n *html.Node) goja.Value {
			if c := elementChildren(n); len(c) > 0 {
				return b.wrap(c[0])
			}
			return goja.Null()
		}, nil),
		b.accessor("nextElementSibling", func(n *html.Node) goja.Value {
			for s := n.NextSibling; s != nil; s = s.NextSibling {
				if s.Type == html.ElementNode {
					return b.wrap(s)
				}
			}
			return goja.Null()
		}, nil),
		b.accessor("isConnected", func(n *html.Node) goja.Value { return vm.ToValue(b.connected(n)) }, nil),
		b.accessor("classList", func(n *html.Node) goja.Value { return b.classList(n) }, nil),
		b.accessor("style", func(n *html.Node) goja.Value {
			return vm.NewDynamicObject(&styleDecl{vm: vm, n: n})
		}, nil),
	}
	for _, err := range accessors {
		if err != nil {
			return err
		}
	}

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"getAttribute": func(call goja.FunctionCall) goja.Value {
			if v, ok := attr(b.this(call), call.Argument(0).String()); ok {
				return str(v)
			}
			return goja.Null()
		},
		"setAttribute": func(call goja.FunctionCall) goja.Value {
			setAttr(b.this(call), call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		},
		"removeAttribute": func(call goja.FunctionCall) goja.Value {
			removeAttr(b.this(call), call.Argument(0).String())
			return goja.Undefined()
		},
		"hasAttribute": func(call goja.FunctionCall) goja.Value {
			_, ok := attr(b.this(call), call.Argument(0).String())
			return vm.ToValue(ok)
		},
		"appendChild": func(call goja.FunctionCall) goja.Value {
			return b.insert(b.this(call), call.Argument(0), nil)
		},
		"insertBefore": func(call goja.FunctionCall) goja.Value {
			var ref *html.Node
			if r := call.Argument(1); !goja.IsNull(r) && !goja.IsUndefined(r) {
				ref, _ = b.node(r)
			}
			return b.insert(b.this(call), call.Argument(0), ref)
		},
		"removeChild": func(call goja.FunctionCall) goja.Value {
			parent := b.this(call)
			child, ok := b.node(call.Argument(0))
			if !ok || child.Parent != parent {
				b.throw("Error", "NotFoundError", "The node to be removed is not a child of this node.")
			}
			parent.RemoveChild(child)
			return call.Argument(0)
		},
		"remove": func(call goja.FunctionCall) goja.Value {
			n := b.this(call)
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
			return goja.Undefined()
		},
		"closest": func(call goja.FunctionCall) goja.Value {
			group := b.compile(call.Argument(0).String())
			for n := b.this(call); n != nil; n = n.Parent {
				if n.Type == html.ElementNode && group.Match(n) {
					return b.wrap(n)
				}
			}
			return goja.Null()
		},
		"matches": func(call goja.FunctionCall) goja.Value {
			n := b.this(call)
			return vm.ToValue(n.Type == html.ElementNode && b.compile(call.Argument(0).String()).Match(n))
		},
		"click": func(call goja.FunctionCall) goja.Value {
			n := b.this(call)
			if _, disabled := attr(n, "disabled"); !disabled {
				b.dispatch(n, b.newEvent("click", true, true))
			}
			return goja.Undefined()
		},
	}
	for name, fn := range b.queryMethods(func(call goja.FunctionCall) *html.Node { return b.this(call) }) {
		methods[name] = fn
	}
	for name, fn := range methods {
		if err := b.proto.Set(name, fn); err != nil {
			return err
		}
	}

	// Listener methods resolve their target from `this`.
	for _, name := range []string{"addEventListener", "removeEventListener", "dispatchEvent"} {
		name := name
		if err := b.proto.Set(name, func(call goja.FunctionCall) goja.Value {
			n := b.this(call)
			return b.targetMethods(n)[name](call)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *domBinding) installDocument() error {
	vm := b.vm
	doc := b.document
	root := func(goja.FunctionCall) *html.Node { return b.root }

	methods := b.queryMethods(root)
	methods["getElementById"] = func(call goja.FunctionCall) goja.Value {
		return b.wrap(findByID(b.root, call.Argument(0).String()))
	}
	methods["createElement"] = func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		if !tagPattern.MatchString(tag) {
			b.throw("Error", "InvalidCharacterError", "The tag name provided is not a valid name.")
		}
		return b.wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
	}
	methods["createTextNode"] = func(call goja.FunctionCall) goja.Value {
		return b.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	}
	for name, fn := range b.targetMethods(docTarget) {
		methods[name] = fn
	}
	for name, fn := range methods {
		if err := doc.Set(name, fn); err != nil {
			return err
		}
	}

	getter := func(name string, get func() goja.Value, set func(goja.Value)) error {
		g := vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
		var s goja.Value
		if set != nil {
			s = vm.ToValue(func(call goja.FunctionCall) goja.Value { set(call.Argument(0)); return goja.Undefined() })
		}
		return doc.DefineAccessorProperty(name, g, s, goja.FLAG_TRUE, goja.FLAG_TRUE)
	}
	findOne := func(expr string) func() goja.Value {
		return func() goja.Value { return b.wrap(htmlquery.FindOne(b.root, expr)) }
	}

	for _, err := range []error{
		getter("body", findOne("//body"), nil),
		getter("head", findOne("//head"), nil),
		getter("documentElement", findOne("/html"), nil),
		getter("readyState", func() goja.Value { return vm.ToValue(string(b.d.readyState)) }, nil),
		getter("title", func() goja.Value { return vm.ToValue(b.title()) }, b.setTitle),
		doc.Set("nodeType", 9),
		doc.Set("nodeName", "#document"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// queryMethods are shared by document and elements; scope picks the root.
func (b *domBinding) queryMethods(scope func(goja.FunctionCall) *html.Node) map[string]func(goja.FunctionCall) goja.Value {
	return map[string]func(goja.FunctionCall) goja.Value{
		"querySelector": func(call goja.FunctionCall) goja.Value {
			nodes := b.query(scope(call), call.Argument(0).String())
			if len(nodes) == 0 {
				return goja.Null()
			}
			return b.wrap(nodes[0])
		},
		"querySelectorAll": func(call goja.FunctionCall) goja.Value {
			return b.wrapAll(b.query(scope(call), call.Argument(0).String()))
		},
		"getElementsByTagName": func(call goja.FunctionCall) goja.Value {
			return b.wrapAll(byTag(scope(call), call.Argument(0).String()))
		},
		"getElementsByClassName": func(call goja.FunctionCall) goja.Value {
			return b.wrapAll(byClass(scope(call), call.Argument(0).String()))
		},
	}
}

func (b *domBinding) compile(sel string) cascadia.SelectorGroup {
	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		b.throw("SyntaxError", "", "'"+sel+"' is not a valid selector")
	}
	return group
}

// query evaluates a CSS selector over scope's descendants with goquery.
func (b *domBinding) query(scope *html.Node, sel string) []*html.Node {
	b.compile(sel)
	return goquery.NewDocumentFromNode(scope).Find(sel).Nodes
}

func (b *domBinding) insert(parent *html.Node, childVal goja.Value, ref *html.Node) goja.Value {
	child, ok := b.node(childVal)
	if !ok || child.Type == html.DocumentNode {
		panic(b.vm.NewTypeError("parameter 1 is not of type 'Node'"))
	}
	if parent.Type != html.ElementNode && parent.Type != html.DocumentNode {
		b.throw("Error", "HierarchyRequestError", "This node type does not support children.")
	}
	for a := parent; a != nil; a = a.Parent {
		if a == child {
			b.throw("Error", "HierarchyRequestError", "The new child element contains the parent.")
		}
	}
	if ref != nil && ref.Parent != parent {
		b.throw("Error", "NotFoundError", "The node before which the new node is to be inserted is not a child of this node.")
	}
	if ref == child {
		return childVal
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	if ref == nil {
		parent.AppendChild(child)
	} else {
		parent.InsertBefore(child, ref)
	}
	return childVal
}

func (b *domBinding) setInnerHTML(n *html.Node, v goja.Value) {
	if n.Type != html.ElementNode {
		return
	}
	nodes, err := html.ParseFragment(strings.NewReader(v.String()), n)
	if err != nil {
		b.throw("SyntaxError", "", err.Error())
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
}

func (b *domBinding) setTitle(v goja.Value) {
	t := htmlquery.FindOne(b.root, "//title")
	if t == nil {
		head := htmlquery.FindOne(b.root, "//head")
		if head == nil {
			return
		}
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	setTextContent(t, v.String())
}

func (b *domBinding) connected(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == b.root {
			return true
		}
	}
	return false
}

func (b *domBinding) classList(n *html.Node) goja.Value {
	vm := b.vm
	list := vm.NewObject()
	classes := func() []string { v, _ := attr(n, "class"); return strings.Fields(v) }
	write := func(c []string) { setAttr(n, "class", strings.Join(c, " ")) }
	has := func(name string) bool {
		for _, c := range classes() {
			if c == name {
				return true
			}
		}
		return false
	}
	without := func(name string) []string {
		var out []string
		for _, c := range classes() {
			if c != name {
				out = append(out, c)
			}
		}
		return out
	}

	_ = list.Set("contains", func(name string) bool { return has(name) })
	_ = list.Set("add", func(call goja.FunctionCall) goja.Value {
		c := classes()
		for _, a := range call.Arguments {
			if name := a.String(); !has(name) {
				c = append(c, name)
				write(c)
			}
		}
		return goja.Undefined()
	})
	_ = list.Set("remove", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			write(without(a.String()))
		}
		return goja.Undefined()
	})
	_ = list.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		on := !has(name)
		if f := call.Argument(1); !goja.IsUndefined(f) {
			on = f.ToBoolean()
		}
		if on && !has(name) {
			write(append(classes(), name))
		} else if !on {
			write(without(name))
		}
		return vm.ToValue(on)
	})
	_ = list.Set("length", len(classes()))
	_ = list.Set("value", strings.Join(classes(), " "))
	return list
}

// Events

func (b *domBinding) targetObject(target any) *goja.Object {
	switch t := target.(type) {
	case *html.Node:
		return b.wrap(t).(*goja.Object)
	case docKey:
		return b.document
	default:
		return b.vm.GlobalObject()
	}
}

// path is the propagation path from target outwards: ancestors, then
// document and window once the node is connected.
func (b *domBinding) path(target any) []any {
	n, ok := target.(*html.Node)
	if !ok {
		if target == docTarget {
			return []any{docTarget, winTarget}
		}
		return []any{winTarget}
	}
	var out []any
	for c := n; c != nil; c = c.Parent {
		if c.Type == html.DocumentNode {
			return append(out, docTarget, winTarget)
		}
		out = append(out, c)
	}
	return out
}

func (b *domBinding) newEvent(typ string, bubbles, cancelable bool) *goja.Object {
	init := b.vm.NewObject()
	_ = init.Set("bubbles", bubbles)
	_ = init.Set("cancelable", cancelable)
	ev, err := b.vm.New(b.vm.Get("Event"), b.vm.ToValue(typ), init)
	if err != nil {
		// The prelude defines Event; fall back to a plain object if a guest
		// replaced it with something unconstructible.
		ev = b.vm.NewObject()
		_ = ev.Set("type", typ)
		_ = ev.Set("bubbles", bubbles)
	}
	return ev
}

// fire dispatches a fresh event from Go. It returns an error only when the
// dispatch was interrupted.
func (b *domBinding) fire(target any, typ string, bubbles bool) error {
	b.interrupted = false
	b.dispatch(target, b.newEvent(typ, bubbles, false))
	if b.interrupted {
		b.interrupted = false
		return ErrScriptTimeout
	}
	return nil
}

// dispatch runs listeners along the propagation path and reports whether
// the default action may proceed.
func (b *domBinding) dispatch(target any, ev *goja.Object) bool {
	typ := ev.Get("type").String()
	bubbles := ev.Get("bubbles").ToBoolean()
	_ = ev.Set("target", b.targetObject(target))

	for i, cur := range b.path(target) {
		if i > 0 && !bubbles {
			break
		}
		obj := b.targetObject(cur)
		_ = ev.Set("currentTarget", obj)
		if !b.invoke(cur, obj, typ, ev) {
			return false
		}
		if ev.Get("cancelBubble").ToBoolean() {
			break
		}
	}
	_ = ev.Set("currentTarget", goja.Null())

	prevented := ev.Get("defaultPrevented")
	return prevented == nil || !prevented.ToBoolean()
}

// invoke calls listeners on one target, then its on<type> handler. It
// returns false if a listener was interrupted.
func (b *domBinding) invoke(target any, obj *goja.Object, typ string, ev *goja.Object) bool {
	key := listenerKey{target: target, typ: typ}
	for _, l := range append([]*listener(nil), b.listeners[key]...) {
		if l.removed {
			continue
		}
		if l.once {
			b.removeListener(key, l.value)
		}
		this := l.this
		if this == nil {
			this = obj
		}
		if !b.callListener(typ, l.fn, this, ev) {
			return false
		}
		if stop := ev.Get("__stopImmediate"); stop != nil && stop.ToBoolean() {
			return true
		}
	}

	handler := obj.Get("on" + typ)
	if fn, ok := goja.AssertFunction(handler); ok {
		return b.callListener(typ, fn, obj, ev)
	}
	if n, ok := target.(*html.Node); ok {
		if code, ok := attr(n, "on"+typ); ok {
			compiled, err := b.vm.RunScript("on"+typ, "(function (event) {\n"+code+"\n})")
			if err != nil {
				b.d.recordGuestError(guestErrorFrom("event:"+typ, err))
				return true
			}
			if fn, ok := goja.AssertFunction(compiled); ok {
				return b.callListener(typ, fn, obj, ev)
			}
		}
	}
	return true
}

func (b *domBinding) callListener(typ string, fn goja.Callable, this goja.Value, ev *goja.Object) bool {
	_, err := fn(this, ev)
	if err == nil {
		return true
	}
	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		// Re-raise so guest code that called dispatchEvent stops as well.
		b.vm.Interrupt(intr.Value())
		b.interrupted = true
		return false
	}
	b.d.recordGuestError(guestErrorFrom("event:"+typ, err))
	return true
}

func (b *domBinding) removeListener(key listenerKey, v goja.Value) {
	list := b.listeners[key]
	for i, l := range list {
		if l.value.SameAs(v) {
			l.removed = true
			b.listeners[key] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// targetMethods returns add/remove/dispatchEvent bound to target.
func (b *domBinding) targetMethods(target any) map[string]func(goja.FunctionCall) goja.Value {
	return map[string]func(goja.FunctionCall) goja.Value{
		"addEventListener": func(call goja.FunctionCall) goja.Value {
			typ := call.Argument(0).String()
			v := call.Argument(1)
			l := &listener{value: v}
			if fn, ok := goja.AssertFunction(v); ok {
				l.fn = fn
			} else if obj, ok := v.(*goja.Object); ok {
				fn, ok := goja.AssertFunction(obj.Get("handleEvent"))
				if !ok {
					return goja.Undefined()
				}
				l.fn, l.this = fn, obj
			} else {
				return goja.Undefined()
			}
			if opts, ok := call.Argument(2).(*goja.Object); ok {
				if once := opts.Get("once"); once != nil {
					l.once = once.ToBoolean()
				}
			}

			key := listenerKey{target: target, typ: typ}
			for _, existing := range b.listeners[key] {
				if existing.value.SameAs(v) {
					return goja.Undefined()
				}
			}
			b.listeners[key] = append(b.listeners[key], l)
			return goja.Undefined()
		},
		"removeEventListener": func(call goja.FunctionCall) goja.Value {
			b.removeListener(listenerKey{target: target, typ: call.Argument(0).String()}, call.Argument(1))
			return goja.Undefined()
		},
		"dispatchEvent": func(call goja.FunctionCall) goja.Value {
			ev, ok := call.Argument(0).(*goja.Object)
			if !ok || ev.Get("type") == nil || goja.IsUndefined(ev.Get("type")) {
				panic(b.vm.NewTypeError("parameter 1 is not of type 'Event'"))
			}
			return b.vm.ToValue(b.dispatch(target, ev))
		},
	}
}

// Tree helpers

func attr(n *html.Node, key string) (string, bool) {
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	if n.Type != html.ElementNode {
		return
	}
	key = strings.ToLower(key)
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	key = strings.ToLower(key)
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	case html.DoctypeNode:
		return 10
	}
	return 0
}

func nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	}
	return n.Data
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
			walk(c.FirstChild)
		}
	}
	walk(n.FirstChild)
	return sb.String()
}

// nodeText is the raw source of a script element.
func nodeText(n *html.Node) string {
	return textContent(n)
}

func setTextContent(n *html.Node, s string) {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		n.Data = s
		return
	}
	removeChildren(n)
	if s != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func findByID(n *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	if n.Type == html.ElementNode {
		if v, ok := attr(n, "id"); ok && v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func byTag(scope *html.Node, tag string) []*html.Node {
	tag = strings.ToLower(tag)
	if tag != "*" && !tagPattern.MatchString(tag) {
		return nil
	}
	nodes, err := htmlquery.QueryAll(scope, ".//"+tag)
	if err != nil {
		return nil
	}
	return nodes
}

func byClass(scope *html.Node, names string) []*html.Node {
	want := strings.Fields(names)
	if len(want) == 0 {
		return nil
	}
	candidates, err := htmlquery.QueryAll(scope, ".//*[@class]")
	if err != nil {
		return nil
	}

	var out []*html.Node
	for _, n := range candidates {
		v, _ := attr(n, "class")
		have := strings.Fields(v)
		if containsAll(have, want) {
			out = append(out, n)
		}
	}
	return out
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
