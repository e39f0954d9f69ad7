// Package playback abstracts the media engine that renders the audio stream.
// The core only needs open/stop/volume primitives and whatever stream tags
// the engine has parsed; everything else about playback is the engine's
// problem.
package playback

// Backend is the playback engine surface the controller drives. All methods
// may be called from the controller's serialized command path.
type Backend interface {
	// Open starts playing the stream at url, replacing any current stream.
	Open(url string) error
	// Stop halts playback.
	Stop() error
	// SetVolume applies an absolute level, clamped to 0-100 by the engine.
	SetVolume(v int) error
	// NowPlaying reports the engine's current metadata tags, empty strings
	// when the stream exposes none.
	NowPlaying() (title, artist string, err error)
	// Release frees engine resources. The backend is unusable afterwards.
	Release()
}
