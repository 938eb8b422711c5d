package channeltable

func resetForTest() {
	resolved.Store(false)
	current.Store(nil)
}
