package packaging

import (
	"bytes"
	"encoding/xml"
	"strings"
)

const manifestTemplate = `<?xml version="1.0" encoding="UTF-8"?><!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd"><plist version="1.0"><dict><key>items</key><array><dict><key>assets</key><array><dict><key>kind</key><string>software-package</string><key>url</key><string>${IPA_URL_BASE}/${IPA_NAME}</string></dict></array><key>metadata</key><dict><key>bundle-identifier</key><string>${BUNDLE_ID}</string><key>bundle-version</key><string>${BUNDLE_VERSION}</string><key>kind</key><string>software</string><key>title</key><string>${APP_NAME}</string></dict></dict></array></dict></plist>`

// Manifest holds the substitutions of an over-the-air install manifest.
type Manifest struct {
	URLBase       string
	IPAName       string
	BundleID      string
	BundleVersion string
	AppName       string
}

// Render fills the fixed manifest template. Values are XML-escaped: an "&"
// in the manifest URL is written as "&amp;" and reads back as "&".
func (m Manifest) Render() string {
	return strings.NewReplacer(
		"${IPA_URL_BASE}", escape(m.URLBase),
		"${IPA_NAME}", escape(m.IPAName),
		"${BUNDLE_ID}", escape(m.BundleID),
		"${BUNDLE_VERSION}", escape(m.BundleVersion),
		"${APP_NAME}", escape(m.AppName),
	).Replace(manifestTemplate)
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
