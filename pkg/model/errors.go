package model

import "github.com/m-mizutani/goerr/v2"

// Messages of these errors are shown to the user as they are.
var (
	ErrEmptyPrompt      = goerr.New("Please enter a prompt first")
	ErrGenerationFailed = goerr.New("Failed to generate image. Please try again.")
	ErrPromptRejected   = goerr.New("prompt rejected by policy")
	ErrBusy             = goerr.New("image generation is already in progress")
)
