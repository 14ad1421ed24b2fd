// Package protocol defines the messages exchanged between the viewer daemon
// (host) and the browser page rendering a document (frame).
//
// Every message travels as an Envelope: a mandatory type tag plus an
// optional JSON payload. The set of types is closed in each direction.
package protocol

import "encoding/json"

// Type discriminates messages on the wire.
type Type string

// Host to frame.
const (
	TypeRefresh        Type = "refresh"
	TypeReload         Type = "reload"
	TypeSetPosition    Type = "setposition"
	TypeSetDestination Type = "setdestination"
	TypeInvert         Type = "invert"
	TypeCurrentDest    Type = "currentdest"
)

// Frame to host.
const (
	TypeReady              Type = "ready"
	TypeClick              Type = "click"
	TypeDblClick           Type = "dblclick"
	TypeKeydown            Type = "keydown"
	TypeContextMenu        Type = "contextmenu"
	TypeOutline            Type = "pdfjsOutline"
	TypeCurrentOutlineItem Type = "currentOutlineItem"
	TypeDestination        Type = "destination"
)

// Envelope is the wire form of every message.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SyncPosition is a point on a page in PDF units (72 per inch). Page is
// zero-based.
type SyncPosition struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// OutlineNode is one entry of a document outline.
type OutlineNode struct {
	Title string          `json:"title"`
	Dest  json.RawMessage `json:"dest,omitempty"`
	Page  *int            `json:"page,omitempty"`
	X     *float64        `json:"x,omitempty"`
	Y     *float64        `json:"y,omitempty"`
	Items []OutlineNode   `json:"items,omitempty"`
}

// HostMessage is a message sent from the host to a frame.
type HostMessage interface {
	Type() Type
	hostMessage()
}

// FrameMessage is a message sent from a frame to the host.
type FrameMessage interface {
	Type() Type
	frameMessage()
}

// Refresh asks the frame to reload the document content while keeping the
// current page and zoom.
type Refresh struct {
	FilePath string `json:"filePath"`
}

// Reload asks the frame to discard all state and load the page again.
type Reload struct {
	Hash string `json:"hash,omitempty"`
}

// SetPosition scrolls the frame to a point on a page.
type SetPosition SyncPosition

// SetDestination scrolls the frame to a named destination. The frame answers
// with Destination.
type SetDestination struct {
	Dest string `json:"dest"`
}

// Invert sets the colour inversion filter.
type Invert struct {
	Initial bool `json:"initial"`
}

// CurrentDest asks the frame which destinations intersect the viewport. The
// frame answers with CurrentOutlineItem.
type CurrentDest struct{}

func (Refresh) Type() Type        { return TypeRefresh }
func (Reload) Type() Type         { return TypeReload }
func (SetPosition) Type() Type    { return TypeSetPosition }
func (SetDestination) Type() Type { return TypeSetDestination }
func (Invert) Type() Type         { return TypeInvert }
func (CurrentDest) Type() Type    { return TypeCurrentDest }

func (Refresh) hostMessage()        {}
func (Reload) hostMessage()         {}
func (SetPosition) hostMessage()    {}
func (SetDestination) hostMessage() {}
func (Invert) hostMessage()         {}
func (CurrentDest) hostMessage()    {}

// Ready reports that the frame finished loading the document.
type Ready struct {
	Pages int `json:"pages,omitempty"`
}

// Click describes a pointer click inside a page.
type Click struct {
	PageIndex int     `json:"pageIndex"`
	PointX    float64 `json:"pointX"`
	PointY    float64 `json:"pointY"`
	Height    float64 `json:"height"`
	Button    int     `json:"button"`
	CtrlKey   bool    `json:"ctrlKey,omitempty"`
}

// DblClick is a double click; it requests inverse synchronisation.
type DblClick Click

// Keydown carries the name of an editor action bound to a key inside the
// frame.
type Keydown struct {
	Action string `json:"action"`
}

// ContextMenu requests inverse synchronisation at a page point. PageNo is
// one-based and X/Y are already in source-tool coordinates.
type ContextMenu struct {
	PageNo int     `json:"pageNo"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Outline carries the outline of the loaded document.
type Outline struct {
	Items []OutlineNode `json:"items"`
}

// CurrentOutlineItem lists the destinations intersecting the viewport.
type CurrentOutlineItem struct {
	Dests []string `json:"dests"`
}

// Destination reports the hash the frame settled on after SetDestination.
type Destination struct {
	Hash string `json:"hash"`
}

func (Ready) Type() Type              { return TypeReady }
func (Click) Type() Type              { return TypeClick }
func (DblClick) Type() Type           { return TypeDblClick }
func (Keydown) Type() Type            { return TypeKeydown }
func (ContextMenu) Type() Type        { return TypeContextMenu }
func (Outline) Type() Type            { return TypeOutline }
func (CurrentOutlineItem) Type() Type { return TypeCurrentOutlineItem }
func (Destination) Type() Type        { return TypeDestination }

func (Ready) frameMessage()              {}
func (Click) frameMessage()              {}
func (DblClick) frameMessage()           {}
func (Keydown) frameMessage()            {}
func (ContextMenu) frameMessage()        {}
func (Outline) frameMessage()            {}
func (CurrentOutlineItem) frameMessage() {}
func (Destination) frameMessage()        {}
