package hazard

// SchemaDescription is the column inventory handed to the text-generation
// service. The model only ever sees the four allow-listed tables.
const SchemaDescription = `Tables available (case-sensitive; ALWAYS wrap table names in double quotes):

"CycloneRisk"(
    id, region, risk_type, risk_id, geometry,
    ssp1_1yr, ssp1_10yr, ssp1_30yr,
    ssp3_1yr, ssp3_10yr, ssp3_30yr,
    ssp5_1yr, ssp5_10yr, ssp5_30yr,
    total_annual_freq, avg_building_exposure
)

"FloodRisk"(
    id, region, risk_type, risk_id, geometry,
    ssp1_1yr, ssp1_10yr, ssp1_30yr,
    ssp3_1yr, ssp3_10yr, ssp3_30yr,
    ssp5_1yr, ssp5_10yr, ssp5_30yr,
    ssp1_30yr_rp200_percent_flooded
)

"HeatRisk"(
    id, region, risk_type, risk_id, geometry,
    ssp1_1yr, ssp3_1yr, ssp5_1yr,
    ssp1_10yr, ssp3_10yr, ssp5_10yr,
    ssp1_30yr, ssp3_30yr, ssp5_30yr,
    ssp5_30yr_ann_days_above_096f
)

"WildfireRisk"(
    id, region, risk_type, risk_id, geometry,
    ssp1_1yr, ssp3_1yr, ssp5_1yr,
    ssp1_10yr, ssp3_10yr, ssp5_10yr,
    ssp1_30yr, ssp3_30yr, ssp5_30yr,
    ssp5_30yr_ann_arid_waves, hist_avg_loss_rate, avg_building_exposure
)`

// frequencyColumns lists the count/extent columns per table, in the naming
// convention the generation prompt describes to the model.
var frequencyColumns = map[Category][]string{
	Cyclone:  {"total_annual_freq", "cat{Z}_annual_freq"},
	Flood:    {"ssp{X}_{Y}yr_rp050_percent_flooded", "ssp{X}_{Y}yr_rp200_percent_flooded"},
	Heat:     {"ssp{X}_{Y}yr_ann_days_above_096f", "ssp{X}_{Y}yr_ann_heat_waves_4d5percent"},
	Wildfire: {"ssp{X}_{Y}yr_fires_30yr"},
}

// FrequencyColumns returns the frequency/extent column patterns for c.
func (c Category) FrequencyColumns() []string {
	out := make([]string, len(frequencyColumns[c]))
	copy(out, frequencyColumns[c])
	return out
}
