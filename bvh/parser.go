package bvh

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/timtadh/lexmachine"

	"github.com/mogaika/armature_poser/config"
)

type parser struct {
	tokens []*lexmachine.Token
	pos    int
	file   File
}

// Parse reads a whole BVH document. Input is decoded with the configured
// charmap first.
func Parse(r io.Reader) (*File, error) {
	data, err := ioutil.ReadAll(config.DecodeReader(r))
	if err != nil {
		return nil, &ParseError{Msg: "unreadable input: " + err.Error()}
	}
	tokens, err := tokenize(data)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return &p.file, nil
}

func (p *parser) errorf(tok *lexmachine.Token, format string, a ...interface{}) error {
	line := 0
	if tok != nil {
		line = tok.StartLine
	} else if len(p.tokens) != 0 {
		line = p.tokens[len(p.tokens)-1].StartLine
	}
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, a...)}
}

// peek returns the next token that is not a line break, or nil at the end.
func (p *parser) peek() *lexmachine.Token {
	for i := p.pos; i < len(p.tokens); i++ {
		if p.tokens[i].Type != TOKEN_NEWLINE {
			return p.tokens[i]
		}
	}
	return nil
}

func (p *parser) next() *lexmachine.Token {
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		if tok.Type != TOKEN_NEWLINE {
			return tok
		}
	}
	return nil
}

func (p *parser) expect(tokenType int) (*lexmachine.Token, error) {
	tok := p.next()
	if tok == nil {
		return nil, p.errorf(nil, "expected %s, got end of file", tokenNames[tokenType])
	}
	if tok.Type != tokenType {
		return nil, p.errorf(tok, "expected %s, got %q", tokenNames[tokenType], tok.Value)
	}
	return tok, nil
}

func (p *parser) number() (float64, error) {
	tok, err := p.expect(TOKEN_NUMBER)
	if err != nil {
		return 0, err
	}
	return parseNumber(p, tok)
}

func parseNumber(p *parser, tok *lexmachine.Token) (float64, error) {
	v, err := strconv.ParseFloat(tok.Value.(string), 64)
	if err != nil {
		return 0, p.errorf(tok, "invalid number %q", tok.Value)
	}
	return v, nil
}

func (p *parser) vector() (mgl64.Vec3, error) {
	var v mgl64.Vec3
	for i := range v {
		f, err := p.number()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

func (p *parser) parse() error {
	first := p.next()
	if first == nil || first.Type != TOKEN_HIERARCHY {
		return p.errorf(first, "file must start with HIERARCHY")
	}

	for {
		tok := p.peek()
		if tok == nil {
			return p.errorf(nil, "missing MOTION section")
		}
		if tok.Type == TOKEN_MOTION {
			break
		}
		if tok.Type != TOKEN_ROOT {
			return p.errorf(tok, "expected ROOT or MOTION, got %q", tok.Value)
		}
		if err := p.joint(-1, p.next()); err != nil {
			return err
		}
	}
	if len(p.file.Skeleton.Joints) == 0 {
		return p.errorf(p.peek(), "hierarchy has no joints")
	}

	p.next()
	return p.motion()
}

// jointName takes the name written after the ROOT or JOINT keyword. A name
// on the following line is read token by token.
func (p *parser) jointName(keyword *lexmachine.Token) (string, error) {
	v := keyword.Value.(string)
	if i := strings.IndexAny(v, " \t"); i >= 0 {
		if name := strings.TrimSpace(v[i:]); name != "" {
			return name, nil
		}
	}
	return p.name()
}

// name joins everything up to the opening brace, names may contain spaces.
func (p *parser) name() (string, error) {
	parts := make([]string, 0, 1)
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type == TOKEN_OPEN || (tok.Type == TOKEN_NEWLINE && len(parts) != 0) {
			break
		}
		p.pos++
		if tok.Type == TOKEN_NEWLINE {
			continue
		}
		parts = append(parts, tok.Value.(string))
	}
	if len(parts) == 0 {
		return "", p.errorf(p.peek(), "joint without name")
	}
	return strings.Join(parts, " "), nil
}

func (p *parser) joint(parent int, keyword *lexmachine.Token) error {
	name, err := p.jointName(keyword)
	if err != nil {
		return err
	}
	if _, err := p.expect(TOKEN_OPEN); err != nil {
		return err
	}

	j := Joint{Name: name, Parent: parent}
	haveOffset := false
	// joints are registered once OFFSET and CHANNELS are known, children
	// need the index
	id := -1
	register := func() {
		if id < 0 {
			id = p.file.Skeleton.addJoint(j)
		}
	}

	for {
		tok := p.next()
		if tok == nil {
			return p.errorf(nil, "unterminated block of joint %q", name)
		}
		switch tok.Type {
		case TOKEN_OFFSET:
			if id >= 0 || haveOffset {
				return p.errorf(tok, "unexpected OFFSET in joint %q", name)
			}
			if j.Offset, err = p.vector(); err != nil {
				return err
			}
			haveOffset = true
		case TOKEN_CHANNELS:
			if id >= 0 || j.Channels != nil {
				return p.errorf(tok, "unexpected CHANNELS in joint %q", name)
			}
			if j.Channels, err = p.channels(); err != nil {
				return err
			}
		case TOKEN_JOINT:
			if !haveOffset {
				return p.errorf(tok, "joint %q has no OFFSET", name)
			}
			register()
			if err := p.joint(id, tok); err != nil {
				return err
			}
		case TOKEN_END_SITE:
			if !haveOffset {
				return p.errorf(tok, "joint %q has no OFFSET", name)
			}
			register()
			end, err := p.endSite()
			if err != nil {
				return err
			}
			p.file.Skeleton.Joints[id].EndSite = &end
		case TOKEN_CLOSE:
			if !haveOffset {
				return p.errorf(tok, "joint %q has no OFFSET", name)
			}
			register()
			return nil
		default:
			return p.errorf(tok, "unexpected %q in joint %q", tok.Value, name)
		}
	}
}

func (p *parser) channels() ([]ChannelType, error) {
	countTok, err := p.expect(TOKEN_NUMBER)
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(countTok.Value.(string))
	if err != nil || count < 0 {
		return nil, p.errorf(countTok, "invalid channel count %q", countTok.Value)
	}
	channels := make([]ChannelType, count)
	for i := range channels {
		tok, err := p.expect(TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		ch, ok := channelNames[tok.Value.(string)]
		if !ok {
			return nil, p.errorf(tok, "unknown channel %q", tok.Value)
		}
		channels[i] = ch
	}
	return channels, nil
}

func (p *parser) endSite() (mgl64.Vec3, error) {
	if _, err := p.expect(TOKEN_OPEN); err != nil {
		return mgl64.Vec3{}, err
	}
	if _, err := p.expect(TOKEN_OFFSET); err != nil {
		return mgl64.Vec3{}, err
	}
	v, err := p.vector()
	if err != nil {
		return v, err
	}
	_, err = p.expect(TOKEN_CLOSE)
	return v, err
}

func (p *parser) motion() error {
	m := &p.file.Motion

	if _, err := p.expect(TOKEN_FRAMES); err != nil {
		return err
	}
	countTok, err := p.expect(TOKEN_NUMBER)
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(countTok.Value.(string))
	if err != nil || count < 0 {
		return p.errorf(countTok, "invalid frame count %q", countTok.Value)
	}
	m.FrameCount = count

	if _, err := p.expect(TOKEN_FRAME_TIME); err != nil {
		return err
	}
	if m.FrameTime, err = p.number(); err != nil {
		return err
	}

	width := p.file.Skeleton.ChannelCount
	m.Values = make([][]float64, 0, count)
	row := make([]float64, 0, width)
	flush := func(tok *lexmachine.Token) error {
		if len(row) == 0 {
			return nil
		}
		if len(row) != width {
			return p.errorf(tok, "motion row has %d values, expected %d", len(row), width)
		}
		m.Values = append(m.Values, row)
		row = make([]float64, 0, width)
		return nil
	}

	for ; p.pos < len(p.tokens); p.pos++ {
		tok := p.tokens[p.pos]
		switch tok.Type {
		case TOKEN_NEWLINE:
			if err := flush(tok); err != nil {
				return err
			}
		case TOKEN_NUMBER:
			v, err := parseNumber(p, tok)
			if err != nil {
				return err
			}
			row = append(row, v)
		default:
			return p.errorf(tok, "unexpected %q in motion data", tok.Value)
		}
	}
	if err := flush(nil); err != nil {
		return err
	}

	if width == 0 {
		m.Values = make([][]float64, count)
	}
	if len(m.Values) < count {
		return p.errorf(nil, "motion has %d frames, header says %d", len(m.Values), count)
	}
	if len(m.Values) > count {
		log.Printf("[bvh] Ignoring %d motion rows past the declared %d frames", len(m.Values)-count, count)
		m.Values = m.Values[:count]
	}
	return nil
}
