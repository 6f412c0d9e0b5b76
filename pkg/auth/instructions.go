package auth

import (
	"fmt"
	"strings"
)

// ShowCookieExtractionGuide prints how to copy the session cookies out of a
// logged-in browser
func ShowCookieExtractionGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("WEIBO COOKIE EXTRACTION GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("The crawler reuses the session of a browser that is logged in to weibo.com.")
	fmt.Println()

	fmt.Println("STEP 1: Log in")
	fmt.Println("   - Open https://www.weibo.com and log in")
	fmt.Println("   - Open any user's profile page")
	fmt.Println()

	fmt.Println("STEP 2: Open Developer Tools")
	fmt.Println("   - Chrome/Edge/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   - Go to the Network tab and refresh the page")
	fmt.Println()

	fmt.Println("STEP 3: Copy the Cookie header")
	fmt.Println("   1. Filter requests by 'ajax'")
	fmt.Println("   2. Click a request such as 'info?uid=...' or 'mymblog?uid=...'")
	fmt.Println("   3. Under Request Headers, copy the whole value of 'Cookie:'")
	fmt.Println()

	fmt.Println("The value is a list of name=value pairs separated by semicolons.")
	fmt.Println("It must include SUB; XSRF-TOKEN is sent back as x-xsrf-token when present.")
	fmt.Println()

	fmt.Println("NOTES:")
	fmt.Println("   - Sessions expire. When every request answers ok=-100 or 403, copy fresh cookies")
	fmt.Println("   - The cookies give full access to the account; never share them")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide() {
	fmt.Println("\nQuick guide: F12 -> Network -> filter 'ajax' -> any weibo.com request -> Request Headers -> Cookie")
	fmt.Println("   Type 'help' for detailed instructions")
}
