package bubbletea

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// BlockCount returns the number of rendered blocks.
func BlockCount(m Model) int {
	return len(m.blocks)
}

// SetCancel replaces the cancel function of the turn in flight.
func SetCancel(m Model, cancel func()) Model {
	m.cancel = cancel
	return m
}
