// Package gedcom reads and writes the line-oriented GEDCOM interchange
// format. It deals only in level-tagged node forests; mapping records onto
// persons and relationships is the importer's and exporter's job.
package gedcom

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Node is one GEDCOM line plus its subordinate lines.
// Level is implicit in the tree depth when encoding.
type Node struct {
	Level    int
	XRef     string // pointer label for level-0 records, e.g. "@I1@"
	Tag      string
	Value    string
	Children []*Node
}

// First returns the first child with the given tag, or nil
func (n *Node) First(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// All returns every child with the given tag
func (n *Node) All(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// ChildValue returns the value of the first child with the given tag,
// or the empty string
func (n *Node) ChildValue(tag string) string {
	if c := n.First(tag); c != nil {
		return c.Value
	}
	return ""
}

// AddChild appends a child node at the next level and returns it
func (n *Node) AddChild(tag, value string) *Node {
	c := &Node{Level: n.Level + 1, Tag: tag, Value: value}
	n.Children = append(n.Children, c)
	return c
}

// Parse reads a GEDCOM byte stream into an ordered forest of level-0
// records. Lines that don't parse are skipped; only a read failure is an
// error.
func Parse(r io.Reader) ([]*Node, error) {
	var records []*Node
	// stack[i] is the most recent node at level i
	var stack []*Node

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		node, ok := parseLine(line)
		if !ok {
			continue
		}

		if node.Level == 0 {
			records = append(records, node)
			stack = stack[:0]
			stack = append(stack, node)
			continue
		}

		// A child line deeper than its context is malformed; skip it
		if node.Level > len(stack) {
			continue
		}

		parent := stack[node.Level-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack[:node.Level], node)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read gedcom stream: %w", err)
	}

	return records, nil
}

// parseLine splits "LEVEL [@XREF@] TAG [VALUE]"
func parseLine(line string) (*Node, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, false
	}

	level, err := strconv.Atoi(parts[0])
	if err != nil || level < 0 {
		return nil, false
	}

	node := &Node{Level: level}

	rest := parts[1]
	if strings.HasPrefix(rest, "@") && strings.HasSuffix(rest, "@") {
		if len(parts) < 3 {
			return nil, false
		}
		node.XRef = rest
		tagAndValue := strings.SplitN(parts[2], " ", 2)
		node.Tag = tagAndValue[0]
		if len(tagAndValue) == 2 {
			node.Value = tagAndValue[1]
		}
		return node, true
	}

	node.Tag = rest
	if len(parts) == 3 {
		node.Value = parts[2]
	}
	return node, true
}

// Encode writes the forest back out in GEDCOM line format. Output is
// byte-deterministic for a fixed forest.
func Encode(w io.Writer, records []*Node) error {
	bw := bufio.NewWriter(w)
	for _, record := range records {
		if err := encodeNode(bw, record, 0); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func encodeNode(w *bufio.Writer, n *Node, level int) error {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(level))
	if n.XRef != "" {
		sb.WriteByte(' ')
		sb.WriteString(n.XRef)
	}
	sb.WriteByte(' ')
	sb.WriteString(n.Tag)
	if n.Value != "" {
		sb.WriteByte(' ')
		sb.WriteString(n.Value)
	}
	sb.WriteByte('\n')

	if _, err := w.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write gedcom line: %w", err)
	}

	for _, c := range n.Children {
		if err := encodeNode(w, c, level+1); err != nil {
			return err
		}
	}
	return nil
}
