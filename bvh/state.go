package bvh

import "fmt"

type parseState int

const (
	stateHierarchy parseState = iota
	stateRoot
	stateOpenBrace
	stateOffset
	stateChannels
	stateJointBody
	stateEndSiteOpen
	stateEndSiteOffset
	stateEndSiteClose
	stateFrames
	stateFrameTime
	stateFrameData
	stateDone
)

var stateNames = [...]string{
	stateHierarchy:     "hierarchy",
	stateRoot:          "root",
	stateOpenBrace:     "open-brace",
	stateOffset:        "offset",
	stateChannels:      "channels",
	stateJointBody:     "joint-body",
	stateEndSiteOpen:   "end-site-open",
	stateEndSiteOffset: "end-site-offset",
	stateEndSiteClose:  "end-site-close",
	stateFrames:        "frames",
	stateFrameTime:     "frame-time",
	stateFrameData:     "frame-data",
	stateDone:          "done",
}

var stateExpected = [...]string{
	stateHierarchy:     "HIERARCHY",
	stateRoot:          "ROOT <name>",
	stateOpenBrace:     "{",
	stateOffset:        "OFFSET <x> <y> <z>",
	stateChannels:      "CHANNELS <n> <channel>...",
	stateJointBody:     "JOINT <name>, End Site, } or MOTION",
	stateEndSiteOpen:   "{",
	stateEndSiteOffset: "OFFSET <x> <y> <z>",
	stateEndSiteClose:  "}",
	stateFrames:        "Frames: <count>",
	stateFrameTime:     "Frame Time: <seconds>",
	stateFrameData:     "frame values",
	stateDone:          "end of input",
}

func (s parseState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("parseState(%d)", int(s))
}

func (s parseState) expected() string {
	if int(s) < len(stateExpected) {
		return stateExpected[s]
	}
	return "?"
}
