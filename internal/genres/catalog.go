// Package genres loads the genre catalog offered on the configuration form.
//
// The catalog file is line oriented:
//
//	### Fantasy
//	- High Fantasy
//	- Urban Fantasy
//	Slice of Life
//
// A "###" line opens a genre, "-" lines below it are its subgenres and any
// other non-blank line is a genre without subgenres. Redefining a genre
// replaces its subgenres but keeps its original position.
package genres

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	headingMarker  = "###"
	subgenreMarker = "-"

	// AddYourOwn is the pseudo-genre that lets the user type a custom genre.
	AddYourOwn = "Add your own"
	// NoSubgenre keeps the parent genre when subgenres are offered.
	NoSubgenre = "No specific subgenre"
)

// ErrCatalogNotFound is returned when the catalog file does not exist.
var ErrCatalogNotFound = errors.New("genre catalog not found")

// Catalog maps genre names to their subgenres in file order.
type Catalog struct {
	names     []string
	subgenres map[string][]string
}

// Load reads the catalog at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: '%s' file not found", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("failed to open genre catalog: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a catalog from r.
func Parse(r io.Reader) (*Catalog, error) {
	c := &Catalog{subgenres: make(map[string][]string)}

	current := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, headingMarker):
			current = strings.TrimSpace(strings.Trim(line, "# "))
			c.set(current, []string{})
		case strings.HasPrefix(line, subgenreMarker):
			name := strings.TrimSpace(strings.Trim(line, "- "))
			if current == "" {
				// No heading yet: the entry stands on its own.
				c.set(name, []string{})
				continue
			}
			c.subgenres[current] = append(c.subgenres[current], name)
		default:
			c.set(line, []string{})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read genre catalog: %w", err)
	}

	return c, nil
}

func (c *Catalog) set(name string, subgenres []string) {
	if _, ok := c.subgenres[name]; !ok {
		c.names = append(c.names, name)
	}
	c.subgenres[name] = subgenres
}

// Names returns the genre names in file order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Subgenres returns the subgenres of name and whether name is known.
func (c *Catalog) Subgenres(name string) ([]string, bool) {
	subs, ok := c.subgenres[name]
	if !ok {
		return nil, false
	}
	return append([]string{}, subs...), true
}

// Len returns the number of genres.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Options lists the genre choices, ending with AddYourOwn.
func (c *Catalog) Options() []string {
	return append(c.Names(), AddYourOwn)
}

// SubgenreOptions lists the subgenre choices for name. Genres without
// subgenres yield an empty list; otherwise NoSubgenre comes first.
func (c *Catalog) SubgenreOptions(name string) []string {
	subs := c.subgenres[name]
	if len(subs) == 0 {
		return []string{}
	}
	return append([]string{NoSubgenre}, subs...)
}

// Selection is the user's genre choice on the form.
type Selection struct {
	Genre       string `json:"genre"`
	Subgenre    string `json:"subgenre,omitempty"`
	CustomGenre string `json:"custom_genre,omitempty"`
	Description string `json:"description,omitempty"`
}

// Resolve returns the genre sent to the generation service.
func (c *Catalog) Resolve(sel Selection) string {
	if sel.Genre == AddYourOwn {
		return strings.TrimSpace(sel.CustomGenre)
	}
	if len(c.subgenres[sel.Genre]) == 0 || sel.Subgenre == "" || sel.Subgenre == NoSubgenre {
		return sel.Genre
	}
	return sel.Subgenre
}
