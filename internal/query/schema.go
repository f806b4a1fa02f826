package query

import (
	"fmt"

	"google.golang.org/genai"

	"marketpulse/internal/domain"
)

// Response schemas handed to the service alongside each prompt.
var (
	stockSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":             {Type: genai.TypeString, Description: "The full name of the company or financial instrument."},
			"ticker":           {Type: genai.TypeString, Description: "The official stock ticker symbol."},
			"currentValue":     {Type: genai.TypeNumber, Description: "The current market price of the stock."},
			"ytdReturn":        {Type: genai.TypeNumber, Description: "The year-to-date return as a percentage."},
			"dailyChange":      {Type: genai.TypeNumber, Description: "The percentage change in price for the current day."},
			"marketCap":        {Type: genai.TypeNumber, Description: "The total market capitalization in USD."},
			"fiftyTwoWeekHigh": {Type: genai.TypeNumber, Description: "The highest price in the last 52 weeks."},
			"fiftyTwoWeekLow":  {Type: genai.TypeNumber, Description: "The lowest price in the last 52 weeks."},
		},
		Required: []string{"name", "ticker", "currentValue", "ytdReturn", "dailyChange", "marketCap", "fiftyTwoWeekHigh", "fiftyTwoWeekLow"},
	}

	historySchema = &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date":  {Type: genai.TypeString, Description: "The date of the price point in YYYY-MM-DD format."},
				"price": {Type: genai.TypeNumber, Description: "The closing price for that date."},
			},
			Required: []string{"date", "price"},
		},
	}

	newsSchema = &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":       {Type: genai.TypeString, Description: "The headline of the news article."},
				"source":      {Type: genai.TypeString, Description: "The name of the news publication or source (e.g., Reuters, Bloomberg)."},
				"url":         {Type: genai.TypeString, Description: "The direct URL to the full article."},
				"publishedAt": {Type: genai.TypeString, Description: "The publication date in ISO 8601 format (YYYY-MM-DDTHH:mm:ssZ)."},
				"summary":     {Type: genai.TypeString, Description: "A brief one or two-sentence summary of the article."},
			},
			Required: []string{"title", "source", "url", "publishedAt", "summary"},
		},
	}
)

func stockPrompt(q string) string {
	return fmt.Sprintf("Provide the current stock data for %s, which could be a ticker symbol or a company name. "+
		"Include its full name, ticker symbol, current price, YTD return as a percentage, daily percentage change, "+
		"market capitalization in USD, 52-week high, and 52-week low. "+
		"If the ticker is not real, provide fictional but realistic data. The response must be in JSON format.", q)
}

func historyPrompt(ticker string, r domain.ChartRange) string {
	return fmt.Sprintf("Provide historical daily closing prices for the ticker %s for the last %s. "+
		"Return about 30-60 data points, evenly spaced over the period. "+
		"The response must be a JSON array of objects, where each object has a 'date' (YYYY-MM-DD) and a 'price'.", ticker, r)
}

const newsPrompt = "Provide the top 5 most recent and important global financial news articles. " +
	"Focus on market-moving news. For each article, include the title, source, a direct URL, " +
	"the publication date in ISO 8601 format, and a brief summary."
