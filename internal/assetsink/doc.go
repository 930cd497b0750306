// Package assetsink delivers finished artifacts to their external home.
//
// The HTTP sink speaks the kiosk web backend's contract: the artifact is
// posted as a base64 data URL to the upload endpoint, which answers with a
// public URL, and the URL is then registered with the videos endpoint. The
// directory sink copies artifacts into a local folder and is used for
// offline booths and tests.
package assetsink
