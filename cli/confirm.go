package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"reelsync/describe"
	"reelsync/platform"
)

// confirmer shows the generated descriptions and lets the user edit them
// before anything is uploaded.
type confirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newConfirmer(in io.Reader, out io.Writer) *confirmer {
	return &confirmer{in: bufio.NewReader(in), out: out}
}

// editKey names the menu entry that edits one field.
type editKey struct {
	key    string
	target platform.Target
	title  bool
}

var editKeys = []editKey{
	{key: "yt", target: platform.YouTube, title: true},
	{key: "yd", target: platform.YouTube},
	{key: "i", target: platform.Instagram},
	{key: "t", target: platform.TikTok},
}

// Confirm loops over the menu until the user uploads or cancels. End of
// input cancels.
func (c *confirmer) Confirm(descs describe.Descriptions) (describe.Descriptions, bool) {
	edited := make(describe.Descriptions, len(descs))
	for t, d := range descs {
		edited[t] = d
	}
	c.show(edited)

	for {
		fmt.Fprintln(c.out, "\nOptions:")
		fmt.Fprintln(c.out, "  u  - upload with these descriptions")
		for _, k := range editKeys {
			if _, ok := edited[k.target]; ok {
				fmt.Fprintf(c.out, "  %-2s - edit %s\n", k.key, fieldName(k))
			}
		}
		fmt.Fprintln(c.out, "  c  - cancel")
		fmt.Fprint(c.out, "\nChoose an option: ")

		choice, err := c.readLine()
		if err != nil {
			return edited, false
		}
		choice = strings.ToLower(strings.TrimSpace(choice))

		switch choice {
		case "u", "s", "y", "yes":
			return edited, true
		case "c", "n", "no":
			return edited, false
		}

		k, ok := findEditKey(choice)
		if !ok {
			fmt.Fprintln(c.out, "Invalid option")
			continue
		}
		d, ok := edited[k.target]
		if !ok {
			fmt.Fprintln(c.out, "Invalid option")
			continue
		}

		if k.title {
			title, err := c.editTitle(d.Title)
			if err != nil {
				return edited, false
			}
			d.Title = platform.Truncate(title, platform.MaxYouTubeTitle)
			fmt.Fprintf(c.out, "Title updated: %s\n", d.Title)
		} else {
			text, err := c.editText(k.target, d.Text)
			if err != nil {
				return edited, false
			}
			d.Text = platform.Truncate(text, k.target.MaxText())
			fmt.Fprintf(c.out, "== %s (edited) ==\n%s\n", k.target.DisplayName(), d.Text)
		}
		edited[k.target] = d
	}
}

func (c *confirmer) show(descs describe.Descriptions) {
	for _, t := range descs.Targets() {
		d := descs[t]
		fmt.Fprintf(c.out, "== %s (%d characters) ==\n", t.DisplayName(), len([]rune(d.Text)))
		if d.Title != "" {
			fmt.Fprintf(c.out, "Title: %s\n", d.Title)
		}
		fmt.Fprintf(c.out, "%s\n\n", d.Text)
	}
}

// editTitle reads one line. An empty line keeps current.
func (c *confirmer) editTitle(current string) (string, error) {
	fmt.Fprintf(c.out, "\nCurrent title: %s\nNew title (Enter to keep): ", current)
	line, err := c.readLine()
	if err != nil {
		return current, err
	}
	if line = strings.TrimSpace(line); line == "" {
		return current, nil
	}
	return line, nil
}

// editText reads lines until two consecutive empty lines. A line reading
// "cancel" keeps current, as does empty input.
func (c *confirmer) editText(t platform.Target, current string) (string, error) {
	fmt.Fprintf(c.out, "\nEditing %s description.\n", t.DisplayName())
	fmt.Fprintln(c.out, "Enter the new text, an empty line twice to finish, 'cancel' to keep the original:")

	var lines []string
	empty := 0
	for {
		line, err := c.readLine()
		if err != nil {
			return current, err
		}
		if line == "" {
			empty++
			if empty >= 2 {
				break
			}
			lines = append(lines, "")
			continue
		}
		empty = 0
		if strings.EqualFold(line, "cancel") {
			return current, nil
		}
		lines = append(lines, line)
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return current, nil
	}
	return text, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (c *confirmer) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func findEditKey(choice string) (editKey, bool) {
	for _, k := range editKeys {
		if k.key == choice {
			return k, true
		}
	}
	return editKey{}, false
}

func fieldName(k editKey) string {
	if k.title {
		return k.target.DisplayName() + " title"
	}
	return k.target.DisplayName() + " description"
}
