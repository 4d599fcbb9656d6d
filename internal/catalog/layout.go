package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Layout int

const (
	// LayoutNested places a video under expert/course/section directories.
	LayoutNested Layout = iota
	// LayoutFlat places every video directly in the output directory.
	LayoutFlat
)

var pathComponentReplacer = strings.NewReplacer("/", "-", "\\", "-", "\x00", "-")

// cleanComponent keeps a name from introducing directories of its own.
func cleanComponent(name string) string {
	name = pathComponentReplacer.Replace(name)
	switch name {
	case ".", "..":
		return strings.Repeat("_", len(name))
	}
	return name
}

func (v Video) fileStem() string {
	return fmt.Sprintf(
		"%02d - %s (%s).%s",
		v.Lesson.Position,
		v.Lesson.Title,
		v.PublicName,
		v.Extension,
	)
}

// RelativePath is where the video lives relative to the output directory.
//
// nested: <expert>/<course>/<SS> - <section>/<LL> - <lesson> (<public name>).<ext>
//
// flat:   <expert> - <course> - <SS>.<LL> - <lesson> (<public name>).<ext>
func (v Video) RelativePath(layout Layout) string {
	lesson := v.Lesson
	section := lesson.Section

	switch layout {
	case LayoutFlat:
		return cleanComponent(fmt.Sprintf(
			"%s - %s - %02d.%02d - %s (%s).%s",
			v.Expert().Name,
			v.Course().Title,
			section.Position,
			lesson.Position,
			lesson.Title,
			v.PublicName,
			v.Extension,
		))
	default:
		return filepath.Join(
			cleanComponent(v.Expert().Name),
			cleanComponent(v.Course().Title),
			cleanComponent(fmt.Sprintf("%02d - %s", section.Position, section.Title)),
			cleanComponent(v.fileStem()),
		)
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutFlat:
		return "flat"
	default:
		return "nested"
	}
}
