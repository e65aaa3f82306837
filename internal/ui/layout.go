package ui

// Minimum terminal size for the practical screen: editor plus console side
// by side needs 90 columns; the status and header rows need 24 lines.
const (
	minCols = 90
	minRows = 24
)

func DetermineLayoutMode(cols, rows int) LayoutMode {
	if cols < minCols || rows < minRows {
		return LayoutTooSmall
	}
	if cols >= 140 && rows >= 32 {
		return LayoutWide
	}
	return LayoutMedium
}

// ConsolePanelSize reports the inner cell area the console surface gets for
// the given terminal size, so the virtual terminal can be resized to match
// what will actually be drawn.
func ConsolePanelSize(cols, rows int, mode LayoutMode) (w, h int) {
	bodyH := rows - 2 // header and status rows
	switch mode {
	case LayoutWide:
		// Editor takes a fixed share on the left; console gets the rest.
		editorW := editorPanelWidth(cols)
		return maxInt(1, cols-editorW-2), maxInt(1, bodyH-2)
	case LayoutMedium:
		// Editor on top, console below.
		consoleH := bodyH / 3
		if consoleH < 8 {
			consoleH = minInt(8, bodyH)
		}
		return maxInt(1, cols-2), maxInt(1, consoleH-2)
	default:
		return 1, 1
	}
}

func editorPanelWidth(cols int) int {
	w := cols * 55 / 100
	if w < 48 {
		w = 48
	}
	if w > cols-40 {
		w = cols - 40
	}
	return w
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
