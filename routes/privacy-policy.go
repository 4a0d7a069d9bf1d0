package routes

import (
	"fmt"
	"net/http"
)

// PrivacyPolicyHandler serves the Privacy Policy content
func PrivacyPolicyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	// Serve Privacy Policy content as HTML
	html := `
	<!DOCTYPE html>
	<html lang="en">
	<head>
		<meta charset="UTF-8">
		<meta name="viewport" content="width=device-width, initial-scale=1.0">
		<title>Privacy Policy</title>
	</head>
	<body>
		<h1>Privacy Policy</h1>
		<p>Welcome to Amora. This Privacy Policy outlines how we collect, use, and protect your data.</p>
		<p>We store your profile, photos, approximate location and messages only to show you to your matches and deliver your chats and calls.</p>
		<p>Your location is shown as a city name; exact coordinates are never shown to other users.</p>
		<p>Contact us at <a href="mailto:support@amora.app">support@amora.app</a> for questions.</p>
	</body>
	</html>
	`
	fmt.Fprint(w, html)
}
