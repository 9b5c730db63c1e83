package scancode

import "testing"

func TestURL(t *testing.T) {
	b := NewBuilder("scannables.scdn.co")

	got := b.URL("spotify:track:6rqhFgbbKwnb9MLmUQDhG6", 300)
	want := "https://scannables.scdn.co/uri/plain/png/ffffff/black/300/spotify:track:6rqhFgbbKwnb9MLmUQDhG6"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestURLClampsSize(t *testing.T) {
	b := NewBuilder("scannables.scdn.co")

	cases := []struct {
		size int
		want string
	}{
		{20, "https://scannables.scdn.co/uri/plain/png/ffffff/black/100/spotify:track:x"},
		{5000, "https://scannables.scdn.co/uri/plain/png/ffffff/black/1000/spotify:track:x"},
	}
	for _, c := range cases {
		if got := b.URL("spotify:track:x", c.size); got != c.want {
			t.Errorf("URL(size=%d) = %q, want %q", c.size, got, c.want)
		}
	}
}
