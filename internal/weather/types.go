package weather

import "strconv"

type forecastResponse struct {
	List []Entry `json:"list"`
}

// Entry is one 3-hour step of the OpenWeatherMap forecast.
type Entry struct {
	Main struct {
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64  `json:"speed"`
		Deg   float64  `json:"deg"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	DtTxt string `json:"dt_txt"`
}

// Record is one CSV row.
type Record struct {
	Speed       int         `csv:"Vel_Km/h"`
	Direction   int         `csv:"Direcao"`
	Gust        OptionalInt `csv:"Rajada_Km/h"`
	TempMin     int         `csv:"Temp_min"`
	TempMax     int         `csv:"Temp_max"`
	Description string      `csv:"Descricao"`
	Date        string      `csv:"Data"`
}

var Header = []string{"Vel_Km/h", "Direcao", "Rajada_Km/h", "Temp_min", "Temp_max", "Descricao", "Data"}

// OptionalInt renders as an empty cell when the API omitted the value.
type OptionalInt struct {
	Value int
	Valid bool
}

func (o OptionalInt) MarshalCSV() (string, error) {
	if !o.Valid {
		return "", nil
	}
	return strconv.Itoa(o.Value), nil
}
