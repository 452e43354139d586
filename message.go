package main

const (
	MsgRunning = "Litterly Waste Classification API"

	MsgMissingInput = "Please provide either text or image input"

	MsgInvalidImageType = "File must be an image"

	MsgModelNotLoaded = "ML model not loaded"

	MsgPredictionFailed = "Prediction failed"

	MsgInvalidText = "Request body must be JSON of the form {\"text\": \"...\"}"
)
