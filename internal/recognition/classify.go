package recognition

import "fmt"

// ErrorClass decides how a recognition error code affects a session.
type ErrorClass int

const (
	// ClassTransient errors are suppressed entirely.
	ClassTransient ErrorClass = iota
	// ClassRecoverable errors produce a notice; listening continues.
	ClassRecoverable
	// ClassFatal errors produce a notice and stop listening.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRecoverable:
		return "recoverable"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Recognizer error codes with dedicated handling.
const (
	CodeNoSpeech            = "no-speech"
	CodeSpeechNotRecognized = "speech-not-recognized"
	CodeAudioCapture        = "audio-capture"
)

// Classify maps a recognizer error code to its class and the user-facing
// notice. Transient codes return an empty message.
func Classify(code string) (ErrorClass, string) {
	switch code {
	case CodeNoSpeech:
		return ClassTransient, ""
	case CodeSpeechNotRecognized:
		return ClassRecoverable, "Speech not recognized clearly. Try speaking more slowly or use manual typing."
	case CodeAudioCapture:
		return ClassFatal, "No microphone detected. Please check your microphone."
	default:
		return ClassFatal, "Microphone error: " + code
	}
}
