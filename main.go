// Command newscrawler runs the country news crawl service.
package main

import "github.com/PureNewsCanada/NewsArticleProcessingApp/cmd"

func main() {
	cmd.Execute()
}
