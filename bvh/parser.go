// Package bvh reads Biovision hierarchy files into a skeleton and a motion frame store.
package bvh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/mogaika/bvh_player/config"
	"github.com/mogaika/bvh_player/kinerr"
	"github.com/mogaika/bvh_player/motion"
	"github.com/mogaika/bvh_player/skeleton"
)

const maxLineLength = 4 << 20

type Options struct {
	// ConvertUnits scales root translation samples from inches to metres.
	ConvertUnits bool
	// Charmap decodes the file, config.GetEncoding() when nil.
	Charmap *charmap.Charmap
	Logger  *zerolog.Logger
}

type pendingJoint struct {
	name   string
	parent string
	offset mgl64.Vec3
}

type parser struct {
	opts  Options
	log   zerolog.Logger
	state parseState
	line  int

	skel   *skeleton.Skeleton
	frames *motion.FrameStore

	// joints with an open brace, innermost last
	stack         []string
	pending       pendingJoint
	endSiteParent string

	numFrames int
}

// Parse consumes r completely or up to the first error. r is closed before
// returning when it is an io.Closer. On error nothing built so far is returned.
func Parse(r io.Reader, opts Options) (*skeleton.Skeleton, *motion.FrameStore, error) {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	cm := opts.Charmap
	if cm == nil {
		cm = config.GetEncoding()
	}

	p := &parser{
		opts:  opts,
		state: stateHierarchy,
		skel:  skeleton.New(),
	}
	if opts.Logger != nil {
		p.log = *opts.Logger
	} else {
		p.log = log.With().Str("component", "bvh").Logger()
	}

	scanner := bufio.NewScanner(transform.NewReader(r, cm.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for p.state != stateDone && scanner.Scan() {
		p.line++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := p.feed(line); err != nil {
			p.log.Debug().Err(err).Int("line", p.line).Stringer("state", p.state).Msg("parse aborted")
			return nil, nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "Failed to read line %d", p.line+1)
	}
	if p.state != stateDone {
		return nil, nil, p.fail("end of input")
	}

	p.log.Debug().Int("joints", p.skel.Len()).Int("frames", p.frames.NumFrames()).
		Int("dofs", p.frames.NumDOFs()).Msg("parsed")
	return p.skel, p.frames, nil
}

func ParseFile(path string, opts Options) (*skeleton.Skeleton, *motion.FrameStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	skel, frames, err := Parse(f, opts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Failed to parse %q", path)
	}
	return skel, frames, nil
}

func (p *parser) errorf(expected, got string) error {
	return errors.WithStack(&kinerr.FormatError{
		State:    p.state.String(),
		Expected: expected,
		Got:      got,
		Line:     p.line,
	})
}

func (p *parser) fail(got string) error {
	return p.errorf(p.state.expected(), got)
}

func (p *parser) failToken(t token) error {
	return p.fail(t.Lexeme)
}

func (p *parser) feed(line string) error {
	switch p.state {
	case stateFrames:
		return p.parseFrames(line)
	case stateFrameTime:
		return p.parseFrameTime(line)
	case stateFrameData:
		return p.parseFrameData(line)
	}

	tokens, err := tokenize(line)
	if err != nil {
		return p.fail(strings.TrimSpace(line))
	}
	if len(tokens) == 0 {
		return nil
	}
	first := tokens[0]

	switch p.state {
	case stateHierarchy:
		if first.Type != TOKEN_HIERARCHY {
			return p.failToken(first)
		}
		p.state = stateRoot
	case stateRoot:
		if first.Type != TOKEN_ROOT || len(tokens) < 2 {
			return p.failToken(first)
		}
		p.pending = pendingJoint{name: restOfLine(line, tokens[1]), parent: skeleton.GroundName}
		p.state = stateOpenBrace
	case stateOpenBrace:
		if first.Type != TOKEN_LBRACE || len(tokens) != 1 {
			return p.failToken(first)
		}
		p.stack = append(p.stack, p.pending.name)
		p.state = stateOffset
	case stateOffset:
		offset, err := p.parseOffset(tokens)
		if err != nil {
			return err
		}
		p.pending.offset = offset
		p.state = stateChannels
	case stateChannels:
		if err := p.parseChannels(tokens); err != nil {
			return err
		}
		p.state = stateJointBody
	case stateJointBody:
		return p.parseJointBody(line, tokens)
	case stateEndSiteOpen:
		if first.Type != TOKEN_LBRACE || len(tokens) != 1 {
			return p.failToken(first)
		}
		p.state = stateEndSiteOffset
	case stateEndSiteOffset:
		offset, err := p.parseOffset(tokens)
		if err != nil {
			return err
		}
		if err := p.addEndSite(offset); err != nil {
			return err
		}
		p.state = stateEndSiteClose
	case stateEndSiteClose:
		if first.Type != TOKEN_RBRACE || len(tokens) != 1 {
			return p.failToken(first)
		}
		p.state = stateJointBody
	default:
		return p.failToken(first)
	}
	return nil
}

func (p *parser) parseJointBody(line string, tokens []token) error {
	first := tokens[0]
	switch first.Type {
	case TOKEN_JOINT:
		if len(p.stack) == 0 {
			return p.errorf("MOTION", first.Lexeme)
		}
		if len(tokens) < 2 {
			return p.errorf("JOINT <name>", first.Lexeme)
		}
		p.pending = pendingJoint{name: restOfLine(line, tokens[1]), parent: p.stack[len(p.stack)-1]}
		p.state = stateOpenBrace
	case TOKEN_END:
		if len(p.stack) == 0 {
			return p.errorf("MOTION", first.Lexeme)
		}
		if len(tokens) < 2 || tokens[1].Type != TOKEN_SITE {
			return p.errorf("End Site", strings.TrimSpace(line))
		}
		p.endSiteParent = p.stack[len(p.stack)-1]
		switch {
		case len(tokens) == 2:
			p.state = stateEndSiteOpen
		case len(tokens) == 3 && tokens[2].Type == TOKEN_LBRACE:
			p.state = stateEndSiteOffset
		default:
			return p.errorf("End Site", strings.TrimSpace(line))
		}
	case TOKEN_RBRACE:
		if len(p.stack) == 0 {
			return p.errorf("MOTION", first.Lexeme)
		}
		if len(tokens) != 1 {
			return p.errorf("}", strings.TrimSpace(line))
		}
		p.stack = p.stack[:len(p.stack)-1]
	case TOKEN_MOTION:
		if len(p.stack) != 0 {
			return p.errorf(fmt.Sprintf("} closing %q", p.stack[len(p.stack)-1]), first.Lexeme)
		}
		p.state = stateFrames
	case TOKEN_ROOT:
		// exactly one root per file
		return p.errorf("MOTION", strings.TrimSpace(line))
	default:
		return p.failToken(first)
	}
	return nil
}

func (p *parser) parseOffset(tokens []token) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	if tokens[0].Type != TOKEN_OFFSET {
		return v, p.failToken(tokens[0])
	}
	if len(tokens) != 4 {
		return v, p.errorf("3 offset values", fmt.Sprintf("%d values", len(tokens)-1))
	}
	for i, t := range tokens[1:] {
		if t.Type != TOKEN_NUMBER {
			return v, p.errorf("number", t.Lexeme)
		}
		f, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			return v, p.errorf("number", t.Lexeme)
		}
		v[i] = f
	}
	return v, nil
}

func (p *parser) parseChannels(tokens []token) error {
	if tokens[0].Type != TOKEN_CHANNELS {
		return p.failToken(tokens[0])
	}
	if len(tokens) < 2 || tokens[1].Type != TOKEN_NUMBER {
		return p.errorf("channel count", "")
	}
	count, err := strconv.Atoi(tokens[1].Lexeme)
	if err != nil || count < 0 {
		return p.errorf("channel count", tokens[1].Lexeme)
	}
	channels := tokens[2:]
	if len(channels) != count {
		return p.errorf(fmt.Sprintf("%d channels", count), fmt.Sprintf("%d channels", len(channels)))
	}

	name := p.pending.name
	isRoot := p.pending.parent == skeleton.GroundName

	axes := make([]skeleton.Axis, 0, 3)
	positions := make([]skeleton.Axis, 0, 3)
	positionsFirst := true
	for i, ch := range channels {
		if ch.Type != TOKEN_CHANNEL {
			return p.errorf("Xposition, Yposition, Zposition, Xrotation, Yrotation or Zrotation", ch.Lexeme)
		}
		axis := skeleton.Axis(ch.Lexeme[0] - 'X')
		if strings.HasSuffix(ch.Lexeme, "position") {
			positions = append(positions, axis)
			if i >= 3 {
				positionsFirst = false
			}
		} else {
			axes = append(axes, axis)
		}
	}

	var jtype skeleton.JointType
	if isRoot {
		if len(positions) != 3 || len(axes) != 3 || !positionsFirst {
			return p.unsupported(name, "root needs 3 position channels followed by 3 rotation channels")
		}
		jtype = skeleton.JointEulerSix
	} else {
		if len(positions) != 0 {
			return p.unsupported(name, "position channels are only allowed on the root")
		}
		if jtype, err = skeleton.JointTypeForRotations(len(axes)); err != nil {
			return p.unsupported(name, fmt.Sprintf("%d rotation channels", len(axes)))
		}
	}

	joint, err := skeleton.NewJoint(name, jtype, p.pending.offset, axes)
	if err != nil {
		return errors.Wrapf(err, "line %d", p.line)
	}
	if isRoot {
		if err := joint.SetTranslationAxes([3]skeleton.Axis{positions[0], positions[1], positions[2]}); err != nil {
			return errors.Wrapf(err, "line %d", p.line)
		}
	}
	if err := p.skel.AddToSkeleton(joint, p.pending.parent); err != nil {
		return errors.Wrapf(err, "line %d", p.line)
	}

	p.log.Debug().Str("joint", name).Str("parent", p.pending.parent).Stringer("type", jtype).
		Int("line", p.line).Msg("joint")
	return nil
}

func (p *parser) unsupported(joint, reason string) error {
	return errors.Wrapf(&kinerr.UnsupportedJointError{Joint: joint, Reason: reason}, "line %d", p.line)
}

func (p *parser) addEndSite(offset mgl64.Vec3) error {
	base := p.endSiteParent + "End"
	name := base
	for i := 1; p.skel.FindJoint(name) != nil; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}

	joint, err := skeleton.NewJoint(name, skeleton.JointWeld, offset, nil)
	if err != nil {
		return errors.Wrapf(err, "line %d", p.line)
	}
	if err := p.skel.AddToSkeleton(joint, p.endSiteParent); err != nil {
		return errors.Wrapf(err, "line %d", p.line)
	}
	return nil
}

// headerValue splits "Key: value" lines, collapsing whitespace inside the key.
func headerValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return "", "", false
	}
	return strings.Join(strings.Fields(key), " "), fields[0], true
}

func (p *parser) parseFrames(line string) error {
	key, value, ok := headerValue(line)
	if !ok || key != "Frames" {
		return p.fail(strings.TrimSpace(line))
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return p.errorf("frame count", value)
	}
	p.numFrames = n
	p.state = stateFrameTime
	return nil
}

func (p *parser) parseFrameTime(line string) error {
	key, value, ok := headerValue(line)
	if !ok || key != "Frame Time" {
		return p.fail(strings.TrimSpace(line))
	}
	frameTime, err := strconv.ParseFloat(value, 64)
	if err != nil || !(frameTime > 0) {
		return p.errorf("positive frame time", value)
	}

	p.frames, err = motion.NewFrameStore(p.skel.TotalDOF(), frameTime)
	if err != nil {
		return errors.Wrapf(err, "line %d", p.line)
	}
	p.log.Debug().Int("frames", p.numFrames).Float64("frame_time", frameTime).Int("dofs", p.frames.NumDOFs()).Msg("motion")

	if p.numFrames == 0 {
		p.state = stateDone
	} else {
		p.state = stateFrameData
	}
	return nil
}

func (p *parser) parseFrameData(line string) error {
	if err := p.frames.AppendFrame(line, p.opts.ConvertUnits); err != nil {
		var fe *kinerr.FormatError
		if errors.As(err, &fe) {
			fe.State = p.state.String()
			fe.Line = p.line
			return err
		}
		return errors.Wrapf(err, "line %d", p.line)
	}
	if p.frames.NumFrames() == p.numFrames {
		p.state = stateDone
	}
	return nil
}

func restOfLine(line string, t token) string {
	if t.Column < 0 || t.Column > len(line) {
		return t.Lexeme
	}
	return strings.TrimSpace(line[t.Column:])
}
